package gallery

import (
	"fmt"

	"candy-gallery/internal/domain"
)

// GalleryColumns is the fixed width of the gallery grid.
const GalleryColumns = 3

// Texts shown by the gallery.
const (
	LoadingText = "Chargement des NFTs..."
	EmptyText   = "Tu n'as pas encore de NFTs."
)

// ViewKind selects what the gallery shows.
type ViewKind int

const (
	ViewLoading ViewKind = iota
	ViewEmpty
	ViewGrid
)

func (k ViewKind) String() string {
	switch k {
	case ViewLoading:
		return "loading"
	case ViewEmpty:
		return "empty"
	case ViewGrid:
		return "grid"
	default:
		return fmt.Sprintf("ViewKind(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k ViewKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// View is the rendered gallery.
type View struct {
	Kind    ViewKind                `json:"kind"`
	Message string                  `json:"message,omitempty"`
	Columns int                     `json:"columns,omitempty"`
	Rows    [][]domain.GalleryEntry `json:"rows,omitempty"`
}

// Render lays out entries. It has no side effects.
func Render(loading bool, entries []domain.GalleryEntry) View {
	if loading {
		return View{Kind: ViewLoading, Message: LoadingText}
	}
	if len(entries) == 0 {
		return View{Kind: ViewEmpty, Message: EmptyText}
	}

	rows := make([][]domain.GalleryEntry, 0, (len(entries)+GalleryColumns-1)/GalleryColumns)
	for start := 0; start < len(entries); start += GalleryColumns {
		end := min(start+GalleryColumns, len(entries))
		rows = append(rows, append([]domain.GalleryEntry(nil), entries[start:end]...))
	}
	return View{Kind: ViewGrid, Columns: GalleryColumns, Rows: rows}
}
