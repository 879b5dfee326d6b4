package yearbook

import (
	"strconv"

	"github.com/cespare/xxhash/v2"

	"snapbook/internal/model"
)

// Fingerprint hashes the inputs DeriveEntries depends on. Two snapshots with
// the same fingerprint derive the same entries.
func Fingerprint(participants []model.Participant, quotes []model.Quote) string {
	d := xxhash.New()
	write := func(s string) {
		_, _ = d.WriteString(strconv.Itoa(len(s)))
		_, _ = d.WriteString(":")
		_, _ = d.WriteString(s)
	}
	write("participants")
	for _, p := range participants {
		write(p.ID)
		write(p.Name)
		write(strconv.Itoa(len(p.Photos)))
		for _, photo := range p.Photos {
			write(photo.ImageData)
		}
	}
	write("quotes")
	for _, q := range quotes {
		write(q.Text)
	}
	return strconv.FormatUint(d.Sum64(), 16)
}
