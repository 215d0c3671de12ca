package todo

import (
	"sort"
	"strings"
)

// PageSize is the fixed number of todos shown per page.
const PageSize = 5

// Filter selects which visibility classes the list view shows.
type Filter string

const (
	FilterAll        Filter = "all"
	FilterPublic     Filter = "public"
	FilterPrivateOwn Filter = "private-own"
)

// Sort orders the list view by creation time.
type Sort string

const (
	SortNewest Sort = "created-desc"
	SortOldest Sort = "created-asc"
)

// View is the pure list-view query: visibility filter, case-insensitive
// title search, creation-time sort, and fixed-size pagination. It is
// recomputed from a collection snapshot on every render and has no
// failure mode.
type View struct {
	Filter Filter
	Search string
	Sort   Sort
	Page   int // 1-based
}

// Result is one computed page of the list view.
type Result struct {
	Items      []Todo
	Total      int // matching todos across all pages
	Page       int // normalized, 1-based
	TotalPages int
}

// Apply computes the visible page for the given collection snapshot and
// viewer. FilterPrivateOwn with an unauthenticated viewer matches
// nothing.
func (v View) Apply(todos []Todo, viewer Viewer) Result {
	matched := make([]Todo, 0, len(todos))
	search := strings.ToLower(strings.TrimSpace(v.Search))

	for _, t := range todos {
		switch v.Filter {
		case FilterPublic:
			if t.Visibility != VisibilityPublic {
				continue
			}
		case FilterPrivateOwn:
			if viewer.ID == "" || t.Visibility != VisibilityPrivate || t.AuthorID != viewer.ID {
				continue
			}
		}
		if search != "" && !strings.Contains(strings.ToLower(t.Title), search) {
			continue
		}
		matched = append(matched, t)
	}

	if v.Sort == SortOldest {
		sort.SliceStable(matched, func(i, j int) bool {
			return matched[i].Created.Before(matched[j].Created)
		})
	} else {
		sort.SliceStable(matched, func(i, j int) bool {
			return matched[i].Created.After(matched[j].Created)
		})
	}

	total := len(matched)
	totalPages := (total + PageSize - 1) / PageSize
	if totalPages == 0 {
		totalPages = 1
	}

	page := v.Page
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * PageSize
	end := start + PageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	return Result{
		Items:      matched[start:end],
		Total:      total,
		Page:       page,
		TotalPages: totalPages,
	}
}
