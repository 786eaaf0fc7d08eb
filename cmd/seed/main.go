// cmd/seed populates a development database: schema first, then a set
// of demo subscription and usage records, including a few deliberately
// inconsistent rows so the consistency audit has something to find.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"rankpilot-service/internal/db"
	"rankpilot-service/internal/domain/tier"
	"rankpilot-service/internal/repository/postgres"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/lib/pq"
	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/bcrypt"
)

const chunkSize = 100

var schema = []string{
	`CREATE TABLE IF NOT EXISTS subscriptions (
		user_id TEXT PRIMARY KEY,
		tier TEXT NOT NULL DEFAULT 'free',
		status TEXT NOT NULL DEFAULT 'free',
		provider_customer_id TEXT,
		provider_subscription_id TEXT,
		period_start TIMESTAMPTZ,
		period_end TIMESTAMPTZ,
		legacy_role TEXT,
		legacy_plan TEXT,
		last_event_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_subscriptions_status ON subscriptions (status)`,
	`CREATE INDEX IF NOT EXISTS idx_subscriptions_tier ON subscriptions (tier)`,
	`CREATE TABLE IF NOT EXISTS usage_counters (
		user_id TEXT PRIMARY KEY,
		counts JSONB NOT NULL DEFAULT '{}'::jsonb,
		resets_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS admin_identities (
		id BIGSERIAL PRIMARY KEY,
		full_name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		roles TEXT[] NOT NULL DEFAULT '{}',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_login TIMESTAMPTZ
	)`,
}

type seedRow struct {
	userID   string
	tier     tier.Tier
	status   string
	role     string
	plan     string
	counts   map[tier.Action]int
	withRefs bool
}

func main() {
	users := flag.Int("users", 500, "number of demo users to seed")
	schemaOnly := flag.Bool("schema-only", false, "create tables and exit")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("[SEED] No .env file found, relying on system env vars")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := db.ConnectDB(ctx)
	if err != nil {
		log.Fatalf("[SEED] connect: %v", err)
	}
	defer pool.Close()

	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			log.Fatalf("[SEED] schema: %v", err)
		}
	}
	log.Println("[SEED] schema ready")

	if err := seedAdmin(ctx, pool); err != nil {
		log.Fatalf("[SEED] admin: %v", err)
	}

	if *schemaOnly {
		return
	}

	if err := seed(ctx, postgres.NewDB(pool), *users); err != nil {
		log.Fatalf("[SEED] seed: %v", err)
	}
	log.Printf("[SEED] done, %d users", *users)
}

// seedAdmin inserts the super admin identity when bootstrap credentials
// are present in the environment. Existing identities are left alone.
func seedAdmin(ctx context.Context, pool *pgxpool.Pool) error {
	email := os.Getenv("SUPER_ADMIN_EMAIL")
	password := os.Getenv("SUPER_ADMIN_PASSWORD")
	if email == "" || password == "" {
		log.Println("[SEED] no super admin credentials set, skipping")
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	_, err = pool.Exec(ctx, `
		INSERT INTO admin_identities (full_name, email, password_hash, roles, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		ON CONFLICT (email) DO NOTHING`,
		"Super Administrator", email, string(hash),
		pq.Array([]string{"super_admin", "admin"}),
	)
	return err
}

// seed writes all rows inside one transaction, committed exactly once
// at the end. Each chunk gets its own fresh pgx.Batch: a batch is
// single-use, and re-queueing onto an already-sent batch silently
// duplicates earlier rows.
func seed(ctx context.Context, dbw *postgres.DB, users int) error {
	tx, err := dbw.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	rows := demoRows(users)
	for start := 0; start < len(rows); start += chunkSize {
		end := start + chunkSize
		if end > len(rows) {
			end = len(rows)
		}

		batch := &pgx.Batch{}
		for _, row := range rows[start:end] {
			queueRow(batch, row)
		}

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("chunk at %d: %w", start, err)
		}
	}

	return tx.Commit(ctx)
}

func queueRow(batch *pgx.Batch, row seedRow) {
	now := time.Now()
	var custID, subID *string
	var periodStart, periodEnd *time.Time
	if row.withRefs {
		c := "cus_" + row.userID
		s := "sub_" + row.userID
		custID, subID = &c, &s
		ps := now.AddDate(0, 0, -10)
		pe := ps.AddDate(0, 1, 0)
		periodStart, periodEnd = &ps, &pe
	}

	batch.Queue(`
		INSERT INTO subscriptions (
			user_id, tier, status,
			provider_customer_id, provider_subscription_id,
			period_start, period_end,
			legacy_role, legacy_plan, last_event_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id) DO NOTHING`,
		row.userID, row.tier, row.status,
		custID, subID, periodStart, periodEnd,
		row.role, row.plan, now.AddDate(0, 0, -1),
	)

	if len(row.counts) > 0 {
		countsJSON, _ := json.Marshal(row.counts)
		batch.Queue(`
			INSERT INTO usage_counters (user_id, counts, resets_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id) DO NOTHING`,
			row.userID, countsJSON, now.AddDate(0, 1, 0),
		)
	}
}

// demoRows builds mostly consistent records plus a handful of known
// drift cases for the audit to report.
func demoRows(users int) []seedRow {
	tiers := []tier.Tier{tier.TierFree, tier.TierStarter, tier.TierAgency, tier.TierEnterprise}

	rows := make([]seedRow, 0, users+3)
	for i := 0; i < users; i++ {
		t := tiers[i%len(tiers)]
		row := seedRow{
			userID:   "user_" + ulid.Make().String(),
			tier:     t,
			status:   "active",
			role:     string(t),
			plan:     string(t),
			withRefs: true,
			counts: map[tier.Action]int{
				tier.ActionMonthlyAnalyses: i % 3,
				tier.ActionKeywordQueries:  i % 10,
			},
		}
		if t == tier.TierFree {
			row.status = "free"
			row.withRefs = false
		}
		rows = append(rows, row)
	}

	// Drift: role says free, tier says starter.
	rows = append(rows, seedRow{
		userID: "user_drift_role", tier: tier.TierStarter, status: "active",
		role: "free", plan: "starter", withRefs: true,
	})
	// Drift: free record still holding provider references.
	rows = append(rows, seedRow{
		userID: "user_drift_refs", tier: tier.TierFree, status: "free",
		role: "free", plan: "free", withRefs: true,
	})
	// Drift: counter far beyond the free monthly analysis limit.
	rows = append(rows, seedRow{
		userID: "user_drift_over", tier: tier.TierFree, status: "free",
		role: "free", plan: "free",
		counts: map[tier.Action]int{tier.ActionMonthlyAnalyses: 40},
	})

	return rows
}
