package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	addr := fs.String("addr", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)
	adminGet(*addr + "/admin/v1/state")
}

func snapshotCmd(args []string) {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	addr := fs.String("addr", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)
	adminPost(*addr+"/admin/v1/snapshot", nil)
}

func mintCmd(args []string) {
	fs := flag.NewFlagSet("mint", flag.ExitOnError)
	addr := fs.String("addr", "http://127.0.0.1:8080", "server base url")
	owner := fs.String("owner", "", "owning account (required)")
	_ = fs.Parse(args)
	if strings.TrimSpace(*owner) == "" {
		fmt.Fprintln(os.Stderr, "missing -owner")
		os.Exit(2)
	}
	adminPost(*addr+"/admin/v1/mint", map[string]any{"owner": *owner})
}

func burnCmd(args []string) {
	fs := flag.NewFlagSet("burn", flag.ExitOnError)
	addr := fs.String("addr", "http://127.0.0.1:8080", "server base url")
	caller := fs.String("caller", "", "controlling account (required)")
	identity := fs.Uint64("identity", 0, "identity id (required)")
	_ = fs.Parse(args)
	if strings.TrimSpace(*caller) == "" || *identity == 0 {
		fmt.Fprintln(os.Stderr, "missing -caller or -identity")
		os.Exit(2)
	}
	adminPost(*addr+"/admin/v1/burn", map[string]any{"caller": *caller, "identity": *identity})
}

func grantCmd(args []string) {
	fs := flag.NewFlagSet("grant", flag.ExitOnError)
	addr := fs.String("addr", "http://127.0.0.1:8080", "server base url")
	account := fs.String("account", "", "receiving account (required)")
	itemType := fs.String("item_type", "", "item type to grant")
	token := fs.String("token", "", "fee token to grant")
	amount := fs.Uint64("amount", 0, "amount (required)")
	_ = fs.Parse(args)
	if strings.TrimSpace(*account) == "" || *amount == 0 {
		fmt.Fprintln(os.Stderr, "missing -account or -amount")
		os.Exit(2)
	}
	if (strings.TrimSpace(*itemType) == "") == (strings.TrimSpace(*token) == "") {
		fmt.Fprintln(os.Stderr, "provide exactly one of -item_type or -token")
		os.Exit(2)
	}
	body := map[string]any{"account": *account, "amount": *amount}
	if strings.TrimSpace(*itemType) != "" {
		body["item_type"] = *itemType
	} else {
		body["token"] = *token
	}
	adminPost(*addr+"/admin/v1/grant", body)
}

func configCmd(args []string) {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	addr := fs.String("addr", "http://127.0.0.1:8080", "server base url")
	token := fs.String("payment_token", "", "payment token id (optional)")
	cost := fs.Uint64("upgrade_cost", 0, "per-upgrade fee (0 = leave unchanged)")
	_ = fs.Parse(args)

	body := map[string]any{}
	if strings.TrimSpace(*token) != "" {
		body["payment_token"] = *token
	}
	if *cost != 0 {
		body["upgrade_cost"] = *cost
	}
	if len(body) == 0 {
		fmt.Fprintln(os.Stderr, "nothing to set: provide -payment_token and/or -upgrade_cost")
		os.Exit(2)
	}
	adminPost(*addr+"/admin/v1/config", body)
}

func adminGet(url string) {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		fmt.Fprintln(os.Stderr, "get:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	emit(resp)
}

func adminPost(url string, body map[string]any) {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(url, "application/json", &buf)
	if err != nil {
		fmt.Fprintln(os.Stderr, "post:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	emit(resp)
}

func emit(resp *http.Response) {
	b, _ := io.ReadAll(resp.Body)
	os.Stdout.Write(b)
	if !bytes.HasSuffix(b, []byte("\n")) {
		fmt.Println()
	}
	if resp.StatusCode >= 400 {
		os.Exit(1)
	}
}
