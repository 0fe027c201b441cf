// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/chatdesk/internal/completion"
	"github.com/jeranaias/chatdesk/internal/ui/styles"
	"github.com/jeranaias/chatdesk/internal/util"
)

// listTimeout bounds a --refresh of provider model listings.
const listTimeout = 15 * time.Second

// Command: models
//
// Examples:
//   chatdesk models              First page of the catalog
//   chatdesk models --pages 3    First three pages
//   chatdesk models --refresh    Merge live listings from configured providers
//   chatdesk models -p ollama    Only models from one provider

func newModelsCommand(e *env) *cobra.Command {
	var all, refresh bool
	var pages int
	var provider string
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List models available for new conversations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if pages < 1 {
				return &ValidationError{Field: "pages", Value: fmt.Sprint(pages), Reason: "must be at least 1"}
			}
			return e.withApp(func(app *App) error {
				if refresh {
					ctx, cancel := context.WithTimeout(cmd.Context(), listTimeout)
					defer cancel()
					if _, err := app.Router.ListModels(ctx); err != nil {
						app.Logger.Warn("model listing incomplete", zap.Error(err))
						fmt.Fprintln(cmd.ErrOrStderr(), styles.RenderWarning(err.Error()))
					}
				}

				pager := completion.NewPager(modelRows(app.Router, provider), app.Config.UI.ModelPageSize)
				for i := 1; i < pages || (all && pager.HasMore()); i++ {
					if pager.More() == 0 {
						break
					}
				}
				return e.writeModels(cmd.OutOrStdout(), app, pager)
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "show the whole catalog")
	cmd.Flags().IntVar(&pages, "pages", 1, "number of pages to show")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "query configured providers for their models")
	cmd.Flags().StringVarP(&provider, "provider", "p", "", "only list models from this provider")
	return cmd
}

// modelRows lists the catalog with the adapter that would serve each entry.
// A non-empty provider keeps only that provider's models.
func modelRows(router *completion.Router, provider string) []ModelRow {
	models := router.Catalog().All()
	if provider != "" {
		models = router.Catalog().ByProvider(provider)
	}
	rows := make([]ModelRow, 0, len(models))
	for _, m := range models {
		row := ModelRow{
			ID:          m.ID,
			Name:        m.Name,
			Provider:    m.Provider,
			Description: m.Description,
			MaxTokens:   m.MaxTokens,
		}
		if label, _, err := router.Resolve(m.ID); err == nil {
			row.ServedBy = label
		}
		rows = append(rows, row)
	}
	return rows
}

func (e *env) writeModels(out io.Writer, app *App, pager *completion.Pager[ModelRow]) error {
	visible := pager.Visible()
	if e.jsonMode {
		return e.writeJSON(out, "models", ModelListOutput{
			Models:    visible,
			Shown:     len(visible),
			Total:     pager.Total(),
			Providers: app.Router.Providers(),
		})
	}

	current := app.Controller.Model()
	fmt.Fprintf(out, "  %-28s %-12s %-12s %s\n", "Model", "Provider", "Served by", "Description")
	fmt.Fprintln(out, RenderSeparator(76))
	for _, m := range visible {
		marker := " "
		if m.ID == current {
			marker = "*"
		}
		served := m.ServedBy
		if served == "" {
			served = "-"
		}
		fmt.Fprintf(out, "%s %-28s %-12s %-12s %s\n",
			marker,
			padRunes(util.Clip(m.ID, 26, "…"), 28),
			m.Provider,
			served,
			util.Clip(m.Description, 40, "…"),
		)
	}
	if remaining := pager.Remaining(); remaining > 0 {
		fmt.Fprintf(out, "\n%s\n", DimStyle.Render(fmt.Sprintf("%d more. Use --pages or --all to see them.", remaining)))
	}
	return nil
}
