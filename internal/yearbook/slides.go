package yearbook

import (
	"unicode/utf8"

	"snapbook/internal/model"
)

// Slide is one photo in the slideshow.
type Slide struct {
	Image string `json:"image"`
	Name  string `json:"name"`
	Quote string `json:"quote"`
}

// Slides returns every photo of every participant, in order, each captioned
// with a quote chosen from the name length and the photo's position.
func Slides(participants []model.Participant, quotes []model.Quote) []Slide {
	pool := effectivePool(quotes)
	var slides []Slide
	for _, p := range participants {
		n := utf8.RuneCountInString(p.Name)
		for i, photo := range p.Photos {
			slides = append(slides, Slide{
				Image: photo.ImageData,
				Name:  p.Name,
				Quote: pool[(n+i)%len(pool)].Text,
			})
		}
	}
	if slides == nil {
		return []Slide{}
	}
	return slides
}
