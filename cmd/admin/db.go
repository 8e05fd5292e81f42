package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	keepID := fs.String("keep", "", "keep id (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	identity := fs.Uint64("identity", 0, "identity filter (events)")
	op := fs.String("op", "", "event op filter (events)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "snapshots"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		if strings.TrimSpace(*keepID) == "" {
			fmt.Fprintln(os.Stderr, "missing -keep or -db")
			os.Exit(2)
		}
		path = filepath.Join(*dataDir, "keeps", *keepID, "index.db")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	if *limit <= 0 {
		*limit = 20
	}

	switch q {
	case "snapshots":
		rows, err := db.Query(`SELECT seq,path,identities,digest,recorded_at FROM snapshots ORDER BY seq DESC LIMIT ?`, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Seq        int64  `json:"seq"`
				Path       string `json:"path"`
				Identities int    `json:"identities"`
				Digest     string `json:"digest"`
				RecordedAt string `json:"recorded_at"`
			}
			if err := rows.Scan(&r.Seq, &r.Path, &r.Identities, &r.Digest, &r.RecordedAt); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			printJSON(r)
		}

	case "events":
		query := `SELECT seq,op,identity,caller,raw_json FROM events`
		var conds []string
		var params []any
		if *identity != 0 {
			conds = append(conds, "identity = ?")
			params = append(params, int64(*identity))
		}
		if strings.TrimSpace(*op) != "" {
			conds = append(conds, "op = ?")
			params = append(params, strings.TrimSpace(*op))
		}
		if len(conds) > 0 {
			query += " WHERE " + strings.Join(conds, " AND ")
		}
		query += " ORDER BY seq DESC LIMIT ?"
		params = append(params, *limit)

		rows, err := db.Query(query, params...)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var seq, ident int64
			var opName, caller, raw string
			if err := rows.Scan(&seq, &opName, &ident, &caller, &raw); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			fmt.Println(raw)
		}

	case "catalogs":
		rows, err := db.Query(`SELECT name,digest,updated_at FROM catalogs ORDER BY name`)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Name      string `json:"name"`
				Digest    string `json:"digest"`
				UpdatedAt string `json:"updated_at"`
			}
			if err := rows.Scan(&r.Name, &r.Digest, &r.UpdatedAt); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			printJSON(r)
		}

	default:
		fmt.Fprintln(os.Stderr, "unknown query (want snapshots, events, or catalogs):", q)
		os.Exit(2)
	}
}

func printJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		fmt.Fprintln(os.Stderr, "marshal:", err)
		os.Exit(1)
	}
	fmt.Println(string(b))
}
