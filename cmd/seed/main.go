// Command seed loads demo users, projects, reports and devices from a YAML file.
//
// The server must have started once against the database so every schema exists.
// Rows get name-based ids, so running the seed twice updates instead of duplicating.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

var (
	filePath    = flag.String("file", "cmd/seed/demo.yaml", "Path to the demo YAML file")
	dsn         = flag.String("dsn", "", "Postgres DSN (default: env DATABASE_URL)")
	namespace   = flag.String("namespace", "6f1c1d0e-4b8e-4f59-9d1b-2a7c3e9b5a10", "UUID namespace for seeded ids")
	dryRun      = flag.Bool("dry-run", false, "Parse + validate only; no DB writes")
	advisoryKey = flag.Int64("advisory-lock", 0, "Optional Postgres advisory lock key. 0 = disabled")
)

func main() {
	_ = godotenv.Load(".env.local")
	flag.Parse()
	if *dsn == "" {
		*dsn = os.Getenv("DATABASE_URL")
	}

	ns, err := uuid.Parse(*namespace)
	if err != nil {
		fatalf("invalid namespace uuid: %v", err)
	}

	demo, err := loadDemo(*filePath)
	if err != nil {
		fatalf("load: %v", err)
	}
	if err := demo.validate(); err != nil {
		fatalf("validation failed:\n%v", err)
	}
	fmt.Printf("Loaded %d users, %d projects, %d reports, %d devices from %s\n",
		len(demo.Users), len(demo.Projects), len(demo.Reports), len(demo.Devices), *filePath)

	if *dryRun {
		fmt.Println("Dry run complete. No changes made.")
		return
	}
	if *dsn == "" {
		fatalf("--dsn not provided and DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	conn, err := sql.Open("pgx", *dsn)
	if err != nil {
		fatalf("connect: %v", err)
	}
	defer conn.Close()
	if err := conn.PingContext(ctx); err != nil {
		fatalf("ping: %v", err)
	}

	tx, err := conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		fatalf("begin tx: %v", err)
	}
	defer func() {
		_ = tx.Rollback() // no-op if already committed
	}()

	if *advisoryKey != 0 {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, *advisoryKey); err != nil {
			fatalf("advisory lock: %v", err)
		}
	}

	s := seeder{tx: tx, ns: ns, now: time.Now().UTC()}
	users, err := s.users(ctx, demo.Users)
	if err != nil {
		fatalf("users: %v", err)
	}
	if err := s.projects(ctx, demo.Projects, users); err != nil {
		fatalf("projects: %v", err)
	}
	if err := s.reports(ctx, demo.Reports, users); err != nil {
		fatalf("reports: %v", err)
	}
	if err := s.devices(ctx, demo.Devices, users); err != nil {
		fatalf("devices: %v", err)
	}

	if err := tx.Commit(); err != nil {
		fatalf("commit: %v", err)
	}
	fmt.Println("✓ Demo data seeded")
}

type seeder struct {
	tx  *sql.Tx
	ns  uuid.UUID
	now time.Time
}

// users upserts by email and returns email -> user_id. An account that
// already registered through the API keeps its id.
func (s seeder) users(ctx context.Context, in []DemoUser) (map[string]string, error) {
	ids := make(map[string]string, len(in))
	for _, u := range in {
		email := normEmail(u.Email)
		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash %s: %w", email, err)
		}
		var id string
		err = s.tx.QueryRowContext(ctx, `
			INSERT INTO app_auth.users (user_id, email, hashed_password, full_name, bio, organization, avatar_url, created_at, updated_at)
			VALUES ($1, $2, $3, $4, '', $5, '', $6, $6)
			ON CONFLICT (email) DO UPDATE
			SET hashed_password = EXCLUDED.hashed_password,
			    full_name = EXCLUDED.full_name,
			    organization = EXCLUDED.organization,
			    updated_at = EXCLUDED.updated_at
			RETURNING user_id`,
			seedID(s.ns, "user", email), email, string(hash), u.FullName, u.Organization, s.now,
		).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("upsert %s: %w", email, err)
		}
		ids[email] = id
	}
	fmt.Printf("  users: %d\n", len(ids))
	return ids, nil
}

func (s seeder) projects(ctx context.Context, in []DemoProject, users map[string]string) error {
	for _, p := range in {
		owner := users[normEmail(p.Owner)]
		tags := p.Tags
		if tags == nil {
			tags = []string{}
		}
		var id string
		err := s.tx.QueryRowContext(ctx, `
			INSERT INTO projects.projects (id, slug, title, description, category, status, latitude, longitude, area_sq_m, tags, owner_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, $9, $10, $11, $11)
			ON CONFLICT (slug) DO UPDATE
			SET title = EXCLUDED.title,
			    description = EXCLUDED.description,
			    category = EXCLUDED.category,
			    status = EXCLUDED.status,
			    latitude = EXCLUDED.latitude,
			    longitude = EXCLUDED.longitude,
			    tags = EXCLUDED.tags,
			    updated_at = EXCLUDED.updated_at
			RETURNING id`,
			seedID(s.ns, "project", p.Slug), p.Slug, p.Title, p.Description, p.Category, p.Status,
			p.Latitude, p.Longitude, tags, owner, s.now,
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("upsert %s: %w", p.Slug, err)
		}

		if err := s.member(ctx, id, owner, "owner"); err != nil {
			return err
		}
		for _, m := range p.Members {
			uid := users[normEmail(m)]
			if uid == owner {
				continue
			}
			if err := s.member(ctx, id, uid, "member"); err != nil {
				return err
			}
		}
	}
	fmt.Printf("  projects: %d\n", len(in))
	return nil
}

func (s seeder) member(ctx context.Context, projectID, userID, role string) error {
	_, err := s.tx.ExecContext(ctx, `
		INSERT INTO projects.members (project_id, user_id, role, joined_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (project_id, user_id) DO NOTHING`,
		projectID, userID, role, s.now)
	if err != nil {
		return fmt.Errorf("member %s/%s: %w", projectID, userID, err)
	}
	return nil
}

func (s seeder) reports(ctx context.Context, in []DemoReport, users map[string]string) error {
	for _, r := range in {
		_, err := s.tx.ExecContext(ctx, `
			INSERT INTO reports.reports (id, title, description, category, severity, status, latitude, longitude, evidence_urls, reporter_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, '{}', $9, $10, $10)
			ON CONFLICT (id) DO UPDATE
			SET description = EXCLUDED.description,
			    category = EXCLUDED.category,
			    severity = EXCLUDED.severity,
			    status = EXCLUDED.status,
			    latitude = EXCLUDED.latitude,
			    longitude = EXCLUDED.longitude,
			    updated_at = EXCLUDED.updated_at`,
			seedID(s.ns, "report", r.Title), r.Title, r.Description, r.Category, r.Severity, r.Status,
			r.Latitude, r.Longitude, users[normEmail(r.Reporter)], s.now)
		if err != nil {
			return fmt.Errorf("upsert %q: %w", r.Title, err)
		}
	}
	fmt.Printf("  reports: %d\n", len(in))
	return nil
}

func (s seeder) devices(ctx context.Context, in []DemoDevice, users map[string]string) error {
	for _, d := range in {
		hash, err := bcrypt.GenerateFromPassword([]byte(d.Key), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash key for %s: %w", d.Name, err)
		}
		_, err = s.tx.ExecContext(ctx, `
			INSERT INTO sensors.devices (id, name, kind, status, latitude, longitude, owner_id, key_hash, created_at, updated_at)
			VALUES ($1, $2, $3, 'active', $4, $5, $6, $7, $8, $8)
			ON CONFLICT (id) DO UPDATE
			SET kind = EXCLUDED.kind,
			    latitude = EXCLUDED.latitude,
			    longitude = EXCLUDED.longitude,
			    key_hash = EXCLUDED.key_hash,
			    updated_at = EXCLUDED.updated_at`,
			seedID(s.ns, "device", d.Name), d.Name, d.Kind, d.Latitude, d.Longitude,
			users[normEmail(d.Owner)], string(hash), s.now)
		if err != nil {
			return fmt.Errorf("upsert %s: %w", d.Name, err)
		}
	}
	fmt.Printf("  devices: %d\n", len(in))
	return nil
}

func normEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, "❌ "+format+"\n", a...)
	os.Exit(1)
}
