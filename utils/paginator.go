package utils

import "strconv"

// Page describes one window of a paginated listing.
type Page struct {
	Number   int
	NumPages int
	PerPage  int
	Total    int64
}

// Paginate resolves the requested page number against total items.
// A non-numeric request yields the first page; an out of range one (including < 1)
// yields the last page. An empty listing still has one (empty) page.
func Paginate(total int64, perPage int, requested string) Page {
	if perPage <= 0 {
		perPage = 10
	}
	numPages := int((total + int64(perPage) - 1) / int64(perPage))
	if numPages == 0 {
		numPages = 1
	}
	number, err := strconv.Atoi(requested)
	switch {
	case err != nil:
		number = 1
	case number < 1 || number > numPages:
		number = numPages
	}
	return Page{Number: number, NumPages: numPages, PerPage: perPage, Total: total}
}

// Offset is the index of the first item on the page.
func (p Page) Offset() int { return (p.Number - 1) * p.PerPage }

func (p Page) HasPrevious() bool { return p.Number > 1 }

func (p Page) HasNext() bool { return p.Number < p.NumPages }

func (p Page) PreviousNumber() int { return p.Number - 1 }

func (p Page) NextNumber() int { return p.Number + 1 }

// HasOtherPages reports whether navigation links are needed.
func (p Page) HasOtherPages() bool { return p.NumPages > 1 }

// Numbers lists every page number, for the pager links.
func (p Page) Numbers() []int {
	out := make([]int, p.NumPages)
	for i := range out {
		out[i] = i + 1
	}
	return out
}
