package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/halcyon-ai/graphrag/internal/pagination"
)

// EntitiesCmd returns the entities command
func EntitiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entities",
		Short: "List knowledge graph entities",
		Long:  "List graph entities newest-first with cursor pagination, optionally filtered by type",
		RunE:  runEntities,
	}

	cmd.Flags().String("type", "", "Filter by entity type (e.g. PERSON, ORG)")
	cmd.Flags().String("cursor", "", "Pagination cursor from a previous page")
	cmd.Flags().Int("limit", 50, "Page size")

	return cmd
}

type entityListOutput struct {
	Items []entityOutput `json:"items"`
	// Cursor is set when more pages follow.
	Cursor string `json:"cursor,omitempty"`
	Total  int64  `json:"total_entities"`
}

type entityOutput struct {
	ID          string  `json:"id"`
	SurfaceForm string  `json:"surface_form"`
	Type        string  `json:"type"`
	Confidence  float32 `json:"confidence"`
	CreatedAt   string  `json:"created_at"`
}

func runEntities(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	entityType, _ := cmd.Flags().GetString("type")
	cursorStr, _ := cmd.Flags().GetString("cursor")
	limit, _ := cmd.Flags().GetInt("limit")

	var cursor *pagination.Cursor
	if cursorStr != "" {
		cursor, err = pagination.DecodeCursor(cursorStr)
		if err != nil {
			return fmt.Errorf("invalid cursor: %w", err)
		}
	}

	page, err := a.graphRepo.ListEntities(ctx, entityType, cursor, limit)
	if err != nil {
		return err
	}
	total, err := a.graphRepo.CountEntities(ctx)
	if err != nil {
		return err
	}

	out := entityListOutput{Items: make([]entityOutput, 0, len(page.Items)), Total: total}
	for _, e := range page.Items {
		out.Items = append(out.Items, entityOutput{
			ID:          e.ID,
			SurfaceForm: e.SurfaceForm,
			Type:        e.Type,
			Confidence:  e.Confidence,
			CreatedAt:   e.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	if page.HasMore {
		out.Cursor = page.NextCursor
	}
	printJSON(out)
	return nil
}
