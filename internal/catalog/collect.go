package catalog

import "context"

// PageFetcher loads one page of results
type PageFetcher func(ctx context.Context, page int) (*MoviePage, error)

// SectionSpec describes how a section is filled from a paged listing
type SectionSpec struct {
	Category  Category
	StartPage int
	// PageCeiling is the last page that may be fetched
	PageCeiling int
	// Skip drops this many filtered items from the start page
	Skip  int
	Limit int
}

// Lister reads one page of a category listing
type Lister interface {
	List(ctx context.Context, category Category, page int) (*MoviePage, error)
}

// ListFetcher returns a PageFetcher over l.List for category
func ListFetcher(l Lister, category Category) PageFetcher {
	return func(ctx context.Context, page int) (*MoviePage, error) {
		return l.List(ctx, category, page)
	}
}

// Collect fills a section: it filters the start page, skips spec.Skip items
// and then reads following pages until spec.Limit items are gathered or the
// page ceiling is reached. Only a failed start page is an error; later
// failed pages are skipped.
func Collect(ctx context.Context, fetch PageFetcher, spec SectionSpec, filter func([]Movie) []Movie) ([]Movie, error) {
	if filter == nil {
		filter = func(m []Movie) []Movie { return m }
	}
	start := spec.StartPage
	if start < 1 {
		start = 1
	}

	first, err := fetch(ctx, start)
	if err != nil {
		return nil, err
	}

	movies := filter(first.Results)
	if spec.Skip > 0 {
		if spec.Skip >= len(movies) {
			movies = nil
		} else {
			movies = movies[spec.Skip:]
		}
	}

	last := spec.PageCeiling
	if first.TotalPages < last {
		last = first.TotalPages
	}
	for page := start + 1; page <= last && len(movies) < spec.Limit; page++ {
		if ctx.Err() != nil {
			break
		}
		next, err := fetch(ctx, page)
		if err != nil {
			continue
		}
		movies = append(movies, filter(next.Results)...)
	}

	if len(movies) > spec.Limit {
		movies = movies[:spec.Limit]
	}
	if movies == nil {
		movies = []Movie{}
	}
	return movies, nil
}
