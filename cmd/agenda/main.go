// Command agenda is the device-local client: it keeps your attendance
// statuses, hidden flags and notes in a local SQLite file that works
// fully offline, and reconciles them with the shared
// user_event_overrides table when you sync.
//
//	agenda list
//	agenda status <event-id> <maybe|going|sure> [-push]
//	agenda hide <event-id> [-off] [-push]
//	agenda note <event-id> <text> [-push]
//	agenda role <event-id> <role>
//	agenda sync
//
// Local writes always succeed; -push additionally signs in (using
// AGENDA_EMAIL / AGENDA_PASSWORD) and delivers the change to the remote
// table. Signing in always runs the one-time merge first.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/joho/godotenv"

	"github.com/blocosbh/bloco-agenda/internal/agenda"
	"github.com/blocosbh/bloco-agenda/internal/config"
	"github.com/blocosbh/bloco-agenda/internal/database"
	"github.com/blocosbh/bloco-agenda/internal/localstore"
	"github.com/blocosbh/bloco-agenda/internal/model"
	"github.com/blocosbh/bloco-agenda/internal/repository"
	"github.com/blocosbh/bloco-agenda/internal/utils"
)

func main() {
	log.SetFlags(0)
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage()
	}
	cmd, args := os.Args[1], os.Args[2:]

	store, err := localstore.Open(localPath())
	if err != nil {
		log.Fatalf("open local store: %v", err)
	}
	defer store.Close()

	switch cmd {
	case "list":
		runList(store)
	case "status":
		runStatus(store, args)
	case "hide":
		runHide(store, args)
	case "note":
		runNote(store, args)
	case "role":
		runRole(store, args)
	case "sync":
		runSync(store)
	default:
		usage()
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: agenda <list|status|hide|note|role|sync> ...")
	os.Exit(2)
}

// localPath resolves the SQLite file, defaulting under the home dir.
func localPath() string {
	if p := os.Getenv("AGENDA_DB"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "agenda.db"
	}
	dir := filepath.Join(home, ".bloco-agenda")
	_ = os.MkdirAll(dir, 0o755)
	return filepath.Join(dir, "agenda.db")
}

func runList(store *localstore.Store) {
	eng := agenda.NewEngine(store, nil)
	status := eng.StatusMap()
	overrides := eng.OverrideMap()

	ids := map[string]struct{}{}
	for id := range status {
		ids[id] = struct{}{}
	}
	for id := range overrides {
		ids[id] = struct{}{}
	}
	if len(ids) == 0 {
		fmt.Println("agenda is empty")
		return
	}
	sorted := make([]string, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)
	for _, id := range sorted {
		line := id
		if rec, ok := status[id]; ok {
			line += fmt.Sprintf("  status=%s (%s)", rec.Status, rec.UpdatedAt.Format(time.RFC3339))
		}
		if rec, ok := overrides[id]; ok {
			if rec.Hidden {
				line += "  hidden"
			}
			if rec.Notes != "" {
				line += fmt.Sprintf("  note=%q", rec.Notes)
			}
		}
		if rec, ok := eng.GetGoingRole(id); ok {
			line += fmt.Sprintf("  role=%s", rec.Role)
		}
		fmt.Println(line)
	}
}

func runStatus(store *localstore.Store, args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	push := fs.Bool("push", false, "sign in and deliver the change to the remote table")
	_ = fs.Parse(args)
	rest := fs.Args()
	if len(rest) != 2 {
		log.Fatal("usage: agenda status <event-id> <maybe|going|sure> [-push]")
	}

	eng, done := engineFor(store, *push)
	defer done()
	if err := eng.SetStatus(rest[0], model.EventStatus(rest[1])); err != nil {
		log.Fatalf("set status: %v", err)
	}
	fmt.Printf("%s -> %s\n", rest[0], rest[1])
}

func runHide(store *localstore.Store, args []string) {
	fs := flag.NewFlagSet("hide", flag.ExitOnError)
	off := fs.Bool("off", false, "unhide instead of hide")
	push := fs.Bool("push", false, "sign in and deliver the change to the remote table")
	_ = fs.Parse(args)
	rest := fs.Args()
	if len(rest) != 1 {
		log.Fatal("usage: agenda hide <event-id> [-off] [-push]")
	}

	eng, done := engineFor(store, *push)
	defer done()
	notes := ""
	if rec, ok := eng.GetOverride(rest[0]); ok {
		notes = rec.Notes
	}
	if err := eng.SetOverride(rest[0], !*off, notes); err != nil {
		log.Fatalf("set override: %v", err)
	}
	if *off {
		fmt.Printf("%s unhidden\n", rest[0])
	} else {
		fmt.Printf("%s hidden\n", rest[0])
	}
}

func runNote(store *localstore.Store, args []string) {
	fs := flag.NewFlagSet("note", flag.ExitOnError)
	push := fs.Bool("push", false, "sign in and deliver the change to the remote table")
	_ = fs.Parse(args)
	rest := fs.Args()
	if len(rest) != 2 {
		log.Fatal("usage: agenda note <event-id> <text> [-push]")
	}

	eng, done := engineFor(store, *push)
	defer done()
	hidden := false
	if rec, ok := eng.GetOverride(rest[0]); ok {
		hidden = rec.Hidden
	}
	if err := eng.SetOverride(rest[0], hidden, rest[1]); err != nil {
		log.Fatalf("set override: %v", err)
	}
	fmt.Printf("%s noted\n", rest[0])
}

func runRole(store *localstore.Store, args []string) {
	if len(args) != 2 {
		log.Fatal("usage: agenda role <event-id> <role>")
	}
	eng := agenda.NewEngine(store, nil)
	if err := eng.SetGoingRole(args[0], args[1]); err != nil {
		log.Fatalf("set role: %v", err)
	}
	fmt.Printf("%s role=%s\n", args[0], args[1])
}

func runSync(store *localstore.Store) {
	eng, done := engineFor(store, true)
	defer done()
	status := eng.StatusMap()
	overrides := eng.OverrideMap()
	fmt.Printf("synced: %d statuses, %d overrides\n", len(status), len(overrides))
}

// engineFor builds the engine, and when connected is true also signs in
// against the shared database: credential check, session transition and
// the one-time merge. The returned cleanup drains the outbox.
func engineFor(store *localstore.Store, connected bool) (*agenda.Engine, func()) {
	if !connected {
		return agenda.NewEngine(store, nil), func() {}
	}

	cfg := config.LoadDB()
	syncCfg := config.LoadSyncConfig()
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("connect remote: %v", err)
	}

	ownerID := signIn(db)
	remote := repository.NewOverrideRepo(db)
	outbox := agenda.NewOutbox(remote, agenda.OutboxConfig{
		QueueSize:   syncCfg.OutboxSize,
		MaxAttempts: syncCfg.MaxAttempts,
		BaseBackoff: syncCfg.BaseBackoff,
		MaxBackoff:  syncCfg.MaxBackoff,
		CallTimeout: syncCfg.CallTimeout,
	})
	eng := agenda.NewEngine(store, remote, agenda.WithOutbox(outbox))
	sess := agenda.NewSession(eng)

	ctx, cancel := context.WithTimeout(context.Background(), syncCfg.MergeTimeout)
	defer cancel()
	if err := sess.OnSignIn(ctx, ownerID); err != nil {
		log.Fatalf("sync failed: %v", err)
	}
	return eng, func() { outbox.Close(); db.Close() }
}

// signIn verifies AGENDA_EMAIL / AGENDA_PASSWORD against the users
// table and returns the owner id.
func signIn(db *sql.DB) uint64 {
	email := os.Getenv("AGENDA_EMAIL")
	password := os.Getenv("AGENDA_PASSWORD")
	if email == "" || password == "" {
		log.Fatal("set AGENDA_EMAIL and AGENDA_PASSWORD to sync")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	u, err := repository.NewUserRepo(db).GetByEmail(ctx, email)
	if err != nil || !utils.VerifyPassword(u.PasswordHash, password) {
		log.Fatal("invalid credentials")
	}
	return u.ID
}
