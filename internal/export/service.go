package export

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"taskboard/api/internal/store"
)

// DataStore is the read side export needs.
type DataStore interface {
	GetBoard(ctx context.Context, boardID string) (store.Board, error)
	ListListsWithCards(ctx context.Context, boardID string) ([]store.ListWithCards, error)
}

type Service struct {
	store   DataStore
	objects ObjectStore
	now     func() time.Time
}

// NewService creates an export service. objects may be nil, in which case
// Snapshot returns ErrObjectStoreDisabled.
func NewService(data DataStore, objects ObjectStore) *Service {
	return &Service{store: data, objects: objects, now: time.Now}
}

// Build loads the board into an export document.
func (s *Service) Build(ctx context.Context, boardID string) (Document, error) {
	board, err := s.store.GetBoard(ctx, boardID)
	if err != nil {
		return Document{}, fmt.Errorf("get board: %w", err)
	}
	lists, err := s.store.ListListsWithCards(ctx, boardID)
	if err != nil {
		return Document{}, fmt.Errorf("list lists: %w", err)
	}

	doc := Document{
		ID:         board.ID,
		Title:      board.Title,
		Version:    board.Version,
		ExportedAt: s.now().UTC(),
		Lists:      make([]ListDoc, 0, len(lists)),
	}
	for _, list := range lists {
		ld := ListDoc{ID: list.ID, Title: list.Title, Position: list.Position, Cards: make([]CardDoc, 0, len(list.Cards))}
		for _, card := range list.Cards {
			cd := CardDoc{ID: card.ID, Title: card.Title, Position: card.Position, Labels: make([]string, 0, len(card.Labels))}
			if card.Assignee != nil {
				cd.Assignee = card.Assignee.Name
			}
			for _, label := range card.Labels {
				cd.Labels = append(cd.Labels, label.Name)
			}
			ld.Cards = append(ld.Cards, cd)
		}
		doc.Lists = append(doc.Lists, ld)
	}
	return doc, nil
}

// Export renders the board in the requested format.
func (s *Service) Export(ctx context.Context, boardID string, format Format) (*Result, error) {
	doc, err := s.Build(ctx, boardID)
	if err != nil {
		return nil, err
	}
	return render(doc, format)
}

func render(doc Document, format Format) (*Result, error) {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode export: %w", err)
		}
		return &Result{Data: data, Filename: filename(doc.Title, "json"), MimeType: "application/json"}, nil
	case FormatMarkdown:
		data, err := renderMarkdown(doc)
		if err != nil {
			return nil, fmt.Errorf("render markdown: %w", err)
		}
		return &Result{Data: data, Filename: filename(doc.Title, "md"), MimeType: "text/markdown; charset=utf-8"}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// Snapshot uploads the JSON export under boards/<id>/v<version>-<unix>.json.
func (s *Service) Snapshot(ctx context.Context, boardID string) (Snapshot, error) {
	if s.objects == nil {
		return Snapshot{}, ErrObjectStoreDisabled
	}
	doc, err := s.Build(ctx, boardID)
	if err != nil {
		return Snapshot{}, err
	}
	result, err := render(doc, FormatJSON)
	if err != nil {
		return Snapshot{}, err
	}

	key := fmt.Sprintf("boards/%s/v%d-%d.json", doc.ID, doc.Version, doc.ExportedAt.Unix())
	if err := s.objects.Put(ctx, key, result.Data, result.MimeType); err != nil {
		return Snapshot{}, fmt.Errorf("upload snapshot: %w", err)
	}
	return Snapshot{Bucket: s.objects.Bucket(), Key: key, Version: doc.Version}, nil
}

var unsafeFilename = regexp.MustCompile(`[^a-z0-9]+`)

func filename(title, ext string) string {
	base := strings.Trim(unsafeFilename.ReplaceAllString(strings.ToLower(title), "-"), "-")
	if base == "" {
		base = "board"
	}
	return base + "." + ext
}
