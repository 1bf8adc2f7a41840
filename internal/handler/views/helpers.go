// Package views renders the portal's HTML pages as templ components.
package views

//go:generate templ generate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/a-h/templ"

	appI18n "github.com/pavelanni/resultportal/internal/i18n"
	"github.com/pavelanni/resultportal/internal/model"
	"github.com/pavelanni/resultportal/internal/score"
)

func href(ctx context.Context, p string) string {
	return model.BasePathFromContext(ctx) + p
}

func link(ctx context.Context, p string) templ.SafeURL {
	return templ.URL(href(ctx, p))
}

func tr(ctx context.Context, id string) string {
	return appI18n.T(ctx, id)
}

// pageTitle is the <title> text; an empty message ID means the application title.
func pageTitle(ctx context.Context, title string) string {
	app := tr(ctx, "AppTitle")
	if title == "" {
		return app
	}
	return tr(ctx, title) + " | " + app
}

func heading(ctx context.Context, title string) string {
	if title == "" {
		return tr(ctx, "AppTitle")
	}
	return tr(ctx, title)
}

func formatScore(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

func scoreOutOf(ctx context.Context, b *score.Breakdown) string {
	return appI18n.Td(ctx, "ScoreOutOf", map[string]any{
		"Score": formatScore(b.Score),
		"OutOf": formatScore(b.OutOf),
	})
}

func isPDF(p string) bool {
	return strings.HasSuffix(strings.ToLower(p), ".pdf")
}

// jsonBody is the request body a script-driven button sends.
func jsonBody(payload map[string]any) string {
	if payload == nil {
		return "{}"
	}
	b, _ := json.Marshal(payload)
	return string(b)
}

func studentPath(rollNo string) string {
	return "/admin/students/" + url.PathEscape(rollNo)
}

func statsLabel(ctx context.Context, p PostStats) string {
	if p.Post == "" {
		return tr(ctx, "Total")
	}
	return string(p.Post)
}

func activeLabel(active bool) string {
	if active {
		return "Active"
	}
	return "Inactive"
}

func visibilityLabel(on bool) (state, action string) {
	if on {
		return "Visible", "Hide"
	}
	return "Hidden", "Show"
}

func publishLabel(published bool) (status, action string) {
	if published {
		return "Published", "Unpublish"
	}
	return "NotPublished", "Publish"
}
