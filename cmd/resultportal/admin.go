package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/resultportal/internal/model"
	"github.com/pavelanni/resultportal/internal/store"
)

func seedAdmin(ctx context.Context, db store.Backend, password string) error {
	count, err := db.UserCount(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if password == "" {
		return fmt.Errorf("admin password is required: set --admin-password flag or RESULTPORTAL_ADMIN_PASSWORD env var")
	}

	if err := createUser(ctx, db, "admin", "Administrator", password); err != nil {
		return err
	}
	slog.Info("seeded default admin user", "username", "admin")
	return nil
}

func createUser(ctx context.Context, db store.Backend, username, displayName, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	err = db.CreateUser(ctx, model.User{
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		Active:       true,
	})
	if err != nil {
		return fmt.Errorf("create user %s: %w", username, err)
	}
	return nil
}

func runCreateAdmin(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := context.Background()

	username := v.GetString("username")
	password := v.GetString("password")
	if password == "" {
		return fmt.Errorf("password is required: set --password flag or RESULTPORTAL_PASSWORD env var")
	}
	displayName := v.GetString("display-name")
	if displayName == "" {
		displayName = username
	}

	db, err := openStore(ctx, v)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := createUser(ctx, db, username, displayName, password); err != nil {
		return err
	}
	slog.Info("created admin user", "username", username)
	return nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := context.Background()

	db, err := openStore(ctx, v)
	if err != nil {
		return err
	}
	defer db.Close()

	results, err := store.ExportResults(ctx, db)
	if err != nil {
		return fmt.Errorf("export results: %w", err)
	}
	omrPublic, err := db.GetFlag(ctx, model.FlagOMRPublic)
	if err != nil {
		return fmt.Errorf("read flags: %w", err)
	}
	resultsPublic, err := db.GetFlag(ctx, model.FlagResultsPublic)
	if err != nil {
		return fmt.Errorf("read flags: %w", err)
	}

	export := model.ResultsExport{
		GeneratedAt:    time.Now().UTC(),
		TotalQuestions: v.GetInt("total-questions"),
		MaxScore:       v.GetFloat64("max-score"),
		Flags:          model.Flags{OMRPublic: omrPublic, ResultsPublic: resultsPublic},
		Results:        results,
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	_, _ = fmt.Fprintln(w)

	slog.Info("exported results", "students", len(results))
	return nil
}
