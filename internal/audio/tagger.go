package audio

import (
	"fmt"

	"github.com/bogem/id3v2"

	"ohdiodl/internal/model"
)

// descriptionLimit caps the COMM frame at this many characters; some
// players choke on very long comments.
const descriptionLimit = 1000

// Tagger writes audiobook metadata into MP3 files as ID3v2 tags.
//
// Standard frames cover title, author, year, genre, narrator, series
// and track numbering. Fields without a standard frame (publisher,
// ISBN, duration, source URL, language) are stored as TXXX
// user-defined frames so they survive round trips through common
// players.
//
// Example:
//
//	tagger := NewTagger()
//	err := tagger.WriteTags("/books/Jane_Doe_-_Le_voyage.mp3", md)
//	if err != nil {
//	    log.Printf("tagging failed: %v", err)
//	}
type Tagger struct{}

// NewTagger creates a Tagger.
func NewTagger() *Tagger {
	return &Tagger{}
}

// WriteTags writes all available metadata to the MP3 file at path.
//
// Empty metadata fields are skipped rather than written as empty
// frames. Cover art in md.ThumbnailData is embedded as the front
// cover; it should already be JPEG (see ioutils.ProcessCover).
func (t *Tagger) WriteTags(path string, md *model.AudiobookMetadata) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("open tags: %w", err)
	}
	defer tag.Close()

	tag.SetDefaultEncoding(id3v2.EncodingUTF8)

	tag.SetTitle(md.Title)
	tag.SetArtist(md.Author)
	// A single-file audiobook is its own album.
	tag.SetAlbum(md.Title)

	if year := md.PublicationYear(); year != "" {
		tag.AddTextFrame("TDRC", id3v2.EncodingUTF8, year)
	}

	if md.Genre != "" {
		tag.SetGenre(md.Genre)
	} else {
		tag.SetGenre("Audiobook")
	}

	if md.Narrator != "" {
		// TPE3 (conductor) is the conventional narrator slot.
		tag.AddTextFrame("TPE3", id3v2.EncodingUTF8, md.Narrator)
	}

	if md.SeriesNumber > 0 {
		tag.AddTextFrame("TPOS", id3v2.EncodingUTF8, fmt.Sprintf("%d", md.SeriesNumber))
	}
	tag.AddTextFrame("TRCK", id3v2.EncodingUTF8, "1/1")

	t.writeUserFrames(tag, md)

	if md.Description != "" {
		desc := md.Description
		// Truncate on rune boundaries; French text is full of
		// multi-byte characters.
		if runes := []rune(desc); len(runes) > descriptionLimit {
			desc = string(runes[:descriptionLimit])
		}
		tag.AddCommentFrame(id3v2.CommentFrame{
			Encoding:    id3v2.EncodingUTF8,
			Language:    "fra",
			Description: "Description",
			Text:        desc,
		})
	}

	if len(md.ThumbnailData) > 0 {
		t.writeArtwork(tag, md.ThumbnailData)
	}

	return tag.Save()
}

// writeUserFrames stores fields that have no standard ID3 frame as
// TXXX user-defined text frames.
func (t *Tagger) writeUserFrames(tag *id3v2.Tag, md *model.AudiobookMetadata) {
	frames := []struct {
		description string
		value       string
	}{
		{"PUBLISHER", md.Publisher},
		{"ISBN", md.ISBN},
		{"DURATION", md.Duration},
		{"SOURCE_URL", md.URL},
		{"LANGUAGE", md.Language},
		{"SERIES", md.Series},
	}
	for _, f := range frames {
		if f.value == "" {
			continue
		}
		tag.AddUserDefinedTextFrame(id3v2.UserDefinedTextFrame{
			Encoding:    id3v2.EncodingUTF8,
			Description: f.description,
			Value:       f.value,
		})
	}
}

// writeArtwork embeds cover art as the front cover picture frame,
// replacing any existing pictures.
func (t *Tagger) writeArtwork(tag *id3v2.Tag, artwork []byte) {
	tag.DeleteFrames(tag.CommonID("Attached picture"))
	tag.AddAttachedPicture(id3v2.PictureFrame{
		Encoding:    id3v2.EncodingUTF8,
		MimeType:    "image/jpeg",
		PictureType: id3v2.PTFrontCover,
		Description: "Cover",
		Picture:     artwork,
	})
}

// ReadTitle reads back the TIT2 frame from a tagged file. Used to
// verify tagging in tests and by the dry-run report.
func ReadTitle(path string) (string, error) {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return "", err
	}
	defer tag.Close()
	return tag.Title(), nil
}

// TagSummary is the readable view of a file's tags: the standard
// frames plus every TXXX user frame, keyed by description.
type TagSummary struct {
	Title      string
	Artist     string
	Album      string
	Year       string
	Genre      string
	Narrator   string
	Track      string
	Comment    string
	UserFrames map[string]string
	HasCover   bool
}

// ReadTags reads back the full tag summary from a tagged file, for
// verifying what a write actually stored.
func ReadTags(path string) (*TagSummary, error) {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return nil, fmt.Errorf("open tags: %w", err)
	}
	defer tag.Close()

	s := &TagSummary{
		Title:      tag.Title(),
		Artist:     tag.Artist(),
		Album:      tag.Album(),
		Year:       tag.GetTextFrame("TDRC").Text,
		Genre:      tag.Genre(),
		Narrator:   tag.GetTextFrame("TPE3").Text,
		Track:      tag.GetTextFrame("TRCK").Text,
		UserFrames: map[string]string{},
	}
	for _, f := range tag.GetFrames(tag.CommonID("User defined text information frame")) {
		if udt, ok := f.(id3v2.UserDefinedTextFrame); ok {
			s.UserFrames[udt.Description] = udt.Value
		}
	}
	for _, f := range tag.GetFrames(tag.CommonID("Comments")) {
		if cf, ok := f.(id3v2.CommentFrame); ok {
			s.Comment = cf.Text
			break
		}
	}
	s.HasCover = len(tag.GetFrames(tag.CommonID("Attached picture"))) > 0
	return s, nil
}

// CopyTags replaces dst's tags with a copy of src's, frame by frame.
// The audio data of both files is untouched.
func CopyTags(src, dst string) error {
	srcTag, err := id3v2.Open(src, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("open source tags: %w", err)
	}
	defer srcTag.Close()

	dstTag, err := id3v2.Open(dst, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("open destination tags: %w", err)
	}
	defer dstTag.Close()

	dstTag.DeleteAllFrames()
	dstTag.SetDefaultEncoding(id3v2.EncodingUTF8)
	for id, frames := range srcTag.AllFrames() {
		for _, f := range frames {
			dstTag.AddFrame(id, f)
		}
	}
	return dstTag.Save()
}

// StripTags removes every ID3 frame from the file.
func StripTags(path string) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return err
	}
	defer tag.Close()
	tag.DeleteAllFrames()
	return tag.Save()
}
