package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/codxp/xptracker/internal/config"
	"github.com/codxp/xptracker/internal/ledger"
	"github.com/codxp/xptracker/internal/store"
)

// ANSI colors matching the classic console tool.
const (
	colReset  = "\x1b[0m"
	colBold   = "\x1b[1m"
	colRed    = "\x1b[91m"
	colGreen  = "\x1b[92m"
	colBlue   = "\x1b[94m"
	colOrange = "\x1b[38;5;208m"
	colWhite  = "\x1b[97m"
	colDim    = "\x1b[2m"
)

func color(txt, c string) string {
	return c + txt + colReset
}

func colorForCategory(cat ledger.Category) string {
	switch cat {
	case ledger.Regular:
		return colGreen
	case ledger.Weapon:
		return colBlue
	case ledger.BattlePass:
		return colOrange
	default:
		return colWhite
	}
}

// cli holds the interactive session: a working copy of one user's ledger
// plus the store it saves back to.
type cli struct {
	in       *bufio.Scanner
	store    store.AccountStore
	backend  string
	username string
	data     ledger.Ledger
	dirty    bool
}

func main() {
	configPath := flag.String("config", "", "path to YAML config (or ENV XP_CONFIG)")
	username := flag.String("user", store.SentinelUsername, "account to edit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("read config: %v", err)
	}
	if cfg == nil {
		cfg = &config.Config{Storage: config.StorageConfig{Backend: "flatfile"}}
	}

	accountStore, err := buildStore(cfg)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer accountStore.Close()

	app := &cli{
		in:       bufio.NewScanner(os.Stdin),
		store:    accountStore,
		backend:  cfg.Storage.GetBackend(),
		username: *username,
	}
	if err := app.loadLedger(); err != nil {
		log.Fatalf("load tokens: %v", err)
	}
	app.run()
}

func buildStore(cfg *config.Config) (store.AccountStore, error) {
	switch backend := cfg.Storage.GetBackend(); backend {
	case "memory":
		return store.NewMemoryStore(), nil
	case "flatfile":
		return store.NewFlatFileStore(cfg.Storage.GetTokensFile()), nil
	case "userfile":
		return store.NewUserFileStore(cfg.Storage.GetDataDir()), nil
	case "mongo":
		return store.NewMongoStore(store.MongoConfig{
			URI:        cfg.Storage.Mongo.GetURI(),
			Database:   cfg.Storage.Mongo.GetDatabase(),
			Collection: cfg.Storage.Mongo.GetCollection(),
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

func (app *cli) loadLedger() error {
	acc, err := app.store.Load(context.Background(), app.username)
	if err == store.ErrAccountNotFound {
		app.data = ledger.NewLedger()
		return nil
	}
	if err != nil {
		return err
	}
	app.data = acc.Tokens
	return nil
}

// readLine returns the next trimmed input line; ok=false on EOF.
func (app *cli) readLine() (string, bool) {
	if !app.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(app.in.Text()), true
}

func (app *cli) run() {
	for {
		printMenu()
		fmt.Print(color("Choose an option (1-9): ", colWhite))
		choice, ok := app.readLine()
		if !ok {
			return
		}
		switch choice {
		case "1":
			app.displayAll()
		case "2":
			app.editSingle()
		case "3":
			app.editCategory()
		case "4":
			app.editAllCategories()
		case "5":
			app.save()
		case "6":
			app.save()
			return
		case "7":
			if app.dirty {
				fmt.Println(color("Exiting without saving changes.", colRed))
			}
			return
		case "8":
			app.exportTotals()
		case "9":
			app.editProfile()
		default:
			fmt.Println(color("Invalid option. Please try again.", colRed))
		}
	}
}

func printMenu() {
	fmt.Println(color(colBold+"=== 2XP Token Manager (Regular / Weapon / Battle Pass) ===", colRed))
	fmt.Println("1) View all tokens and totals")
	fmt.Println("2) Edit " + color("ONE", colWhite) + " duration in " + color("ONE category", colWhite))
	fmt.Println("3) Edit ALL four values in ONE category")
	fmt.Println("4) Edit ALL categories at once (12 values)")
	fmt.Println("5) Save changes")
	fmt.Println("6) Save & Exit")
	fmt.Println("7) Exit WITHOUT saving")
	fmt.Println("8) Export totals to a text file")
	fmt.Println("9) View/edit profile")
}

func (app *cli) displayAll() {
	fmt.Println(color(colBold+"=== Current 2XP Tokens ===", colRed))
	grand := 0
	for _, cat := range ledger.Categories() {
		bucket := app.data[cat]
		catColor := colorForCategory(cat)
		fmt.Println("\n" + color(cat.Label()+":", catColor))
		for i := 0; i < ledger.NumSlots; i++ {
			fmt.Printf("  %s%d min:%s %d\n", colDim, ledger.MinuteBuckets[i], colReset, bucket[i])
		}
		minutes, hours := ledger.Totals(bucket)
		grand += minutes
		fmt.Printf("  %s (%g hours)\n", color(fmt.Sprintf("→ %d minutes", minutes), catColor), hours)
	}
	fmt.Println("\n" + color(colBold+"=== Grand Total (all types) ===", colRed))
	fmt.Println(color("Total minutes: ", colWhite) + fmt.Sprint(grand))
	fmt.Println(color("Total hours: ", colWhite) + fmt.Sprint(float64(grand)/60.0) + "\n")
}

func (app *cli) pickCategory() (ledger.Category, bool) {
	for {
		fmt.Println("\n" + color(colBold+"Choose token type:", colRed))
		fmt.Println("  1) " + color("Regular XP", colGreen))
		fmt.Println("  2) " + color("Weapon XP", colBlue))
		fmt.Println("  3) " + color("Battle Pass XP", colOrange))
		s, ok := app.readLine()
		if !ok || s == "" {
			return "", false
		}
		switch s {
		case "1":
			return ledger.Regular, true
		case "2":
			return ledger.Weapon, true
		case "3":
			return ledger.BattlePass, true
		default:
			fmt.Println(color("Invalid token type. Please try again.", colRed))
		}
	}
}

func (app *cli) pickSlot(catColor string) (int, bool) {
	for {
		fmt.Println("\n" + color("Which duration do you want to edit?", catColor))
		for i, mins := range ledger.MinuteBuckets {
			fmt.Printf("  %d) %d minutes\n", i+1, mins)
		}
		choice, ok := app.readLine()
		if !ok || choice == "" {
			return 0, false
		}
		switch choice {
		case "1", "2", "3", "4":
			return int(choice[0] - '1'), true
		default:
			fmt.Println(color("Invalid duration. Please try again.", colRed))
		}
	}
}

func (app *cli) editSingle() {
	cat, ok := app.pickCategory()
	if !ok {
		fmt.Println(color("Edit cancelled.", colRed))
		return
	}
	catColor := colorForCategory(cat)

	slot, ok := app.pickSlot(catColor)
	if !ok {
		fmt.Println(color("Edit cancelled.", colRed))
		return
	}

	for {
		fmt.Print(color(fmt.Sprintf("Enter new token count for %d minutes (blank to cancel): ",
			ledger.MinuteBuckets[slot]), catColor))
		raw, ok := app.readLine()
		if !ok || raw == "" {
			fmt.Println(color("Edit cancelled.", colRed))
			return
		}
		val, err := parseInt(raw)
		if err != nil {
			fmt.Println(color("Not a valid integer. Please try again.", colRed))
			continue
		}
		if val < 0 {
			val = 0
		}
		bucket := app.data[cat]
		bucket[slot] = val
		app.data[cat] = bucket
		app.dirty = true
		return
	}
}

func (app *cli) editCategory() {
	cat, ok := app.pickCategory()
	if !ok {
		fmt.Println(color("Edit cancelled.", colRed))
		return
	}
	catColor := colorForCategory(cat)

	for {
		fmt.Println(color(fmt.Sprintf("Enter four integers for %s (15, 30, 45, 60), separated by spaces.",
			cat.Label()), catColor))
		fmt.Print(color("Example: 2 3 1 4\n> ", colWhite))
		raw, ok := app.readLine()
		if !ok || raw == "" {
			fmt.Println(color("Edit cancelled.", colRed))
			return
		}
		vals, err := parseInts(raw, ledger.NumSlots)
		if err != nil {
			fmt.Println(color(err.Error(), colRed))
			continue
		}
		app.data[cat] = ledger.NormalizeBucket(vals)
		app.dirty = true
		return
	}
}

func (app *cli) editAllCategories() {
	for {
		fmt.Println(color("Enter 12 integers for Regular, Weapon, Battle Pass (each 15,30,45,60).", colRed))
		fmt.Println("Order: " + color("R15 R30 R45 R60", colGreen) + "  " +
			color("W15 W30 W45 W60", colBlue) + "  " + color("B15 B30 B45 B60", colOrange))
		fmt.Print(color("Example: 1 0 2 0  0 1 0 0  3 0 0 1\n> ", colWhite))
		raw, ok := app.readLine()
		if !ok || raw == "" {
			fmt.Println(color("Edit cancelled.", colRed))
			return
		}
		vals, err := parseInts(raw, ledger.NumSlots*3)
		if err != nil {
			fmt.Println(color(err.Error(), colRed))
			continue
		}
		for i, cat := range ledger.Categories() {
			app.data[cat] = ledger.NormalizeBucket(vals[i*ledger.NumSlots : (i+1)*ledger.NumSlots])
		}
		app.dirty = true
		return
	}
}

func (app *cli) save() {
	_, err := app.store.Upsert(context.Background(), app.username, func(a *store.Account) {
		a.Tokens = app.data.Clone()
	})
	if err != nil {
		fmt.Println(color("Failed to save: "+err.Error(), colRed))
		return
	}
	app.dirty = false
	fmt.Println(color("Saved.\n", colGreen))
}

func (app *cli) exportTotals() {
	fmt.Print(color("Enter filename to save totals (e.g., totals.txt): ", colWhite))
	name, ok := app.readLine()
	if !ok || name == "" {
		fmt.Println(color("No filename provided.", colRed))
		return
	}
	if !strings.HasSuffix(strings.ToLower(name), ".txt") {
		name += ".txt"
	}
	report := ledger.BuildTotalsReport(app.data)
	if err := os.WriteFile(name, []byte(report), 0o644); err != nil {
		fmt.Println(color("Failed to save file: "+err.Error(), colRed))
		return
	}
	fmt.Println(color("Saved totals to '"+name+"'.", colGreen))
}

func (app *cli) editProfile() {
	acc, err := app.store.Load(context.Background(), app.username)
	if err == store.ErrAccountNotFound {
		acc = store.DefaultAccount(app.username)
	} else if err != nil {
		fmt.Println(color("Failed to load profile: "+err.Error(), colRed))
		return
	}

	p := acc.Profile
	fmt.Println(color(colBold+"=== Profile ===", colRed))
	fmt.Printf("  CoD username: %s\n  Prestige: %s\n  Level: %d\n", p.CodUsername, p.Prestige, p.Level)

	fmt.Print(color("New CoD username (blank to keep): ", colWhite))
	if v, ok := app.readLine(); ok && v != "" {
		p.CodUsername = v
	}
	fmt.Print(color("New prestige (blank to keep): ", colWhite))
	if v, ok := app.readLine(); ok && v != "" {
		p.Prestige = v
	}
	fmt.Print(color("New level 1-1000 (blank to keep): ", colWhite))
	if v, ok := app.readLine(); ok && v != "" {
		if lvl, err := parseInt(v); err == nil {
			p.Level = store.ClampLevel(lvl)
		} else {
			fmt.Println(color("Not a valid integer, level unchanged.", colRed))
		}
	}

	if app.backend == "flatfile" {
		fmt.Println(color("The flat-file backend only stores tokens; profile changes are not saved.", colRed))
		return
	}

	_, err = app.store.Upsert(context.Background(), app.username, func(a *store.Account) {
		a.Profile = p
	})
	if err != nil {
		fmt.Println(color("Failed to save profile: "+err.Error(), colRed))
		return
	}
	fmt.Println(color("Profile saved.\n", colGreen))
}

func parseInt(raw string) (int, error) {
	return strconv.Atoi(raw)
}

// parseInts expects exactly n whitespace-separated integers, clamped >= 0.
func parseInts(raw string, n int) ([]int, error) {
	parts := strings.Fields(raw)
	if len(parts) != n {
		return nil, fmt.Errorf("Please enter exactly %d integers.", n)
	}
	vals := make([]int, n)
	for i, p := range parts {
		v, err := parseInt(p)
		if err != nil {
			return nil, fmt.Errorf("One or more entries were not valid integers. Please try again.")
		}
		if v < 0 {
			v = 0
		}
		vals[i] = v
	}
	return vals, nil
}
