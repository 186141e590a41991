// Package archive lists past editions for the archive carousel. The list is
// compiled in; paging is plain index arithmetic.
package archive

import "chaszcze-site/internal/models"

const (
	driveFolderURL = "https://drive.google.com/drive/folders/"

	DefaultPerView = 3
)

var entries = []models.ArchiveEntry{
	{
		ID:           1,
		Title:        "INO 2023",
		Date:         "2023",
		Participants: 45,
		Image:        "/data/chaszcze2023.jpg",
		DriveURL:     driveFolderURL + "1DCUr5Wi3iMsVmTTRVrzDFli7vnFnrhsZ",
		Description:  "Wiosenne wydarzenie orienteeringowe z mapami i kompasami",
	},
	{
		ID:           2,
		Title:        "INO 2023 - Jesień",
		Date:         "2022",
		Participants: 38,
		Image:        "/data/chaszcze2022.png",
		DriveURL:     driveFolderURL + "1_vwRx8LG_pYqaUNXQ7jnnVDUkepBlGg5",
		Description:  "Jesienne przygody w terenie z orientacją",
	},
	{
		ID:           3,
		Title:        "INO 2021",
		Date:         "2021",
		Participants: 52,
		Image:        "/data/chaszcze2021.png",
		DriveURL:     driveFolderURL + "1YSa4LhyKBORFEhr7qBy84n8MEv7IAZya",
		Description:  "Letnie wydarzenie z mapami i punktami kontrolnymi",
	},
	{
		ID:           4,
		Title:        "INO 2020",
		Date:         "Marzec 2020",
		Participants: 41,
		Image:        "/data/chaszcze2020.png",
		DriveURL:     driveFolderURL + "14_oY8JPUtFSNsEwsVNjictI5RYlEqmYg",
		Description:  "Wiosenne zawody orienteeringowe",
	},
}

// Entries returns a copy of the archive, newest first.
func Entries() []models.ArchiveEntry {
	out := make([]models.ArchiveEntry, len(entries))
	copy(out, entries)
	return out
}

type Totals struct {
	Events       int
	Participants int
}

func Sum(list []models.ArchiveEntry) Totals {
	t := Totals{Events: len(list)}
	for _, e := range list {
		t.Participants += e.Participants
	}
	return t
}

// Carousel pages through Items, PerView at a time.
type Carousel struct {
	Items   []models.ArchiveEntry
	PerView int
	Index   int
}

// NewCarousel starts at index, clamped into range.
func NewCarousel(items []models.ArchiveEntry, perView, index int) Carousel {
	if perView <= 0 {
		perView = DefaultPerView
	}
	c := Carousel{Items: items, PerView: perView}
	c.Index = c.clamp(index)
	return c
}

func (c Carousel) MaxIndex() int {
	if n := len(c.Items) - c.PerView; n > 0 {
		return n
	}
	return 0
}

// Next moves one step right, wrapping to the start past the last page.
func (c Carousel) Next() Carousel {
	if c.Index >= c.MaxIndex() {
		c.Index = 0
	} else {
		c.Index++
	}
	return c
}

// Prev moves one step left, wrapping to the last page before the first.
func (c Carousel) Prev() Carousel {
	if c.Index <= 0 {
		c.Index = c.MaxIndex()
	} else {
		c.Index--
	}
	return c
}

func (c Carousel) Visible() []models.ArchiveEntry {
	end := c.Index + c.PerView
	if end > len(c.Items) {
		end = len(c.Items)
	}
	return c.Items[c.Index:end]
}

// Paged reports whether navigation controls are needed.
func (c Carousel) Paged() bool { return len(c.Items) > c.PerView }

// Dots lists the indexes a reader can jump to.
func (c Carousel) Dots() []int {
	if c.MaxIndex() == 0 {
		return nil
	}
	out := make([]int, c.MaxIndex()+1)
	for i := range out {
		out[i] = i
	}
	return out
}

func (c Carousel) clamp(i int) int {
	switch {
	case i < 0:
		return 0
	case i > c.MaxIndex():
		return c.MaxIndex()
	}
	return i
}
