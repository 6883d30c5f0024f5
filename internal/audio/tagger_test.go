package audio

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/bogem/id3v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ohdiodl/internal/model"
)

func tempMP3(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "book.mp3")
	// A tag-less file; id3v2 prepends the tag on save.
	require.NoError(t, os.WriteFile(path, make([]byte, 2048), 0644))
	return path
}

func sampleMetadata() *model.AudiobookMetadata {
	return &model.AudiobookMetadata{
		Title:           "Le voyage fantastique",
		Author:          "Jane Doe",
		URL:             "https://ici.radio-canada.ca/ohdio/livres-audio/123/le-voyage",
		Description:     "Une grande aventure pour les petits.",
		Duration:        "2h 15min",
		PublicationDate: "2023-05-10",
		Genre:           "Jeunesse",
		Language:        "fr",
		ISBN:            "9781234567890",
		Publisher:       "Éditions Exemple",
		Narrator:        "Marc Tremblay",
		Series:          "Les aventuriers",
		SeriesNumber:    3,
	}
}

func TestWriteTags_StandardFrames(t *testing.T) {
	path := tempMP3(t)
	require.NoError(t, NewTagger().WriteTags(path, sampleMetadata()))

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	require.NoError(t, err)
	defer tag.Close()

	assert.Equal(t, "Le voyage fantastique", tag.Title())
	assert.Equal(t, "Jane Doe", tag.Artist())
	assert.Equal(t, "Le voyage fantastique", tag.Album(), "single-file book doubles as its own album")
	assert.Equal(t, "Jeunesse", tag.Genre())
	assert.Equal(t, "2023", tag.GetTextFrame("TDRC").Text)
	assert.Equal(t, "Marc Tremblay", tag.GetTextFrame("TPE3").Text)
	assert.Equal(t, "3", tag.GetTextFrame("TPOS").Text)
	assert.Equal(t, "1/1", tag.GetTextFrame("TRCK").Text)
}

func TestWriteTags_UserFrames(t *testing.T) {
	path := tempMP3(t)
	require.NoError(t, NewTagger().WriteTags(path, sampleMetadata()))

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	require.NoError(t, err)
	defer tag.Close()

	values := map[string]string{}
	for _, f := range tag.GetFrames(tag.CommonID("User defined text information frame")) {
		if udf, ok := f.(id3v2.UserDefinedTextFrame); ok {
			values[udf.Description] = udf.Value
		}
	}

	assert.Equal(t, "Éditions Exemple", values["PUBLISHER"])
	assert.Equal(t, "9781234567890", values["ISBN"])
	assert.Equal(t, "2h 15min", values["DURATION"])
	assert.Equal(t, "fr", values["LANGUAGE"])
	assert.Equal(t, "Les aventuriers", values["SERIES"])
	assert.Contains(t, values["SOURCE_URL"], "livres-audio")
}

func TestWriteTags_CommentAndArtwork(t *testing.T) {
	path := tempMP3(t)
	md := sampleMetadata()
	md.ThumbnailData = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x01, 0x02}
	require.NoError(t, NewTagger().WriteTags(path, md))

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	require.NoError(t, err)
	defer tag.Close()

	comments := tag.GetFrames(tag.CommonID("Comments"))
	require.Len(t, comments, 1)
	comment := comments[0].(id3v2.CommentFrame)
	assert.Equal(t, "fra", comment.Language)
	assert.Equal(t, md.Description, comment.Text)

	pictures := tag.GetFrames(tag.CommonID("Attached picture"))
	require.Len(t, pictures, 1)
	pic := pictures[0].(id3v2.PictureFrame)
	assert.Equal(t, "image/jpeg", pic.MimeType)
	assert.EqualValues(t, id3v2.PTFrontCover, pic.PictureType)
	assert.Equal(t, md.ThumbnailData, pic.Picture)
}

func TestWriteTags_SkipsEmptyFields(t *testing.T) {
	path := tempMP3(t)
	md := &model.AudiobookMetadata{
		Title:  "Titre minimal",
		Author: "Jane Doe",
	}
	require.NoError(t, NewTagger().WriteTags(path, md))

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	require.NoError(t, err)
	defer tag.Close()

	assert.Equal(t, "Audiobook", tag.Genre(), "missing genre falls back to Audiobook")
	assert.Empty(t, tag.GetTextFrame("TPE3").Text)
	assert.Empty(t, tag.GetFrames(tag.CommonID("User defined text information frame")))
	assert.Empty(t, tag.GetFrames(tag.CommonID("Comments")))
}

func TestWriteTags_TruncatesLongDescription(t *testing.T) {
	path := tempMP3(t)
	md := sampleMetadata()
	long := make([]byte, 3000)
	for i := range long {
		long[i] = 'a'
	}
	md.Description = string(long)
	require.NoError(t, NewTagger().WriteTags(path, md))

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	require.NoError(t, err)
	defer tag.Close()

	comments := tag.GetFrames(tag.CommonID("Comments"))
	require.Len(t, comments, 1)
	assert.Len(t, comments[0].(id3v2.CommentFrame).Text, descriptionLimit)
}

func TestWriteTags_TruncatesDescriptionOnRuneBoundary(t *testing.T) {
	path := tempMP3(t)
	md := sampleMetadata()
	// 1500 two-byte runes; a byte-wise cut would split one in half.
	md.Description = strings.Repeat("é", 1500)
	require.NoError(t, NewTagger().WriteTags(path, md))

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	require.NoError(t, err)
	defer tag.Close()

	comments := tag.GetFrames(tag.CommonID("Comments"))
	require.Len(t, comments, 1)
	text := comments[0].(id3v2.CommentFrame).Text
	assert.True(t, utf8.ValidString(text))
	assert.Equal(t, descriptionLimit, utf8.RuneCountInString(text))
}

func TestReadTitle(t *testing.T) {
	path := tempMP3(t)
	require.NoError(t, NewTagger().WriteTags(path, sampleMetadata()))

	title, err := ReadTitle(path)
	require.NoError(t, err)
	assert.Equal(t, "Le voyage fantastique", title)
}

func TestStripTags(t *testing.T) {
	path := tempMP3(t)
	require.NoError(t, NewTagger().WriteTags(path, sampleMetadata()))
	require.NoError(t, StripTags(path))

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	require.NoError(t, err)
	defer tag.Close()
	assert.Empty(t, tag.Title())
}

func TestReadTags_FullSummary(t *testing.T) {
	path := tempMP3(t)
	md := sampleMetadata()
	md.ThumbnailData = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x01, 0x02}
	require.NoError(t, NewTagger().WriteTags(path, md))

	s, err := ReadTags(path)
	require.NoError(t, err)

	assert.Equal(t, "Le voyage fantastique", s.Title)
	assert.Equal(t, "Jane Doe", s.Artist)
	assert.Equal(t, "Le voyage fantastique", s.Album)
	assert.Equal(t, "2023", s.Year)
	assert.Equal(t, "Jeunesse", s.Genre)
	assert.Equal(t, "Marc Tremblay", s.Narrator)
	assert.Equal(t, "1/1", s.Track)
	assert.Equal(t, md.Description, s.Comment)
	assert.True(t, s.HasCover)
	assert.Equal(t, "9781234567890", s.UserFrames["ISBN"])
	assert.Equal(t, "Éditions Exemple", s.UserFrames["PUBLISHER"])
	assert.Equal(t, "Les aventuriers", s.UserFrames["SERIES"])
}

func TestCopyTags(t *testing.T) {
	src := tempMP3(t)
	require.NoError(t, NewTagger().WriteTags(src, sampleMetadata()))

	dst := filepath.Join(t.TempDir(), "copy.mp3")
	require.NoError(t, os.WriteFile(dst, make([]byte, 2048), 0644))
	require.NoError(t, CopyTags(src, dst))

	s, err := ReadTags(dst)
	require.NoError(t, err)
	assert.Equal(t, "Le voyage fantastique", s.Title)
	assert.Equal(t, "Jane Doe", s.Artist)
	assert.Equal(t, "9781234567890", s.UserFrames["ISBN"])
}

func TestCopyTags_ReplacesExistingFrames(t *testing.T) {
	src := tempMP3(t)
	require.NoError(t, NewTagger().WriteTags(src, sampleMetadata()))

	dst := tempMP3(t)
	other := &model.AudiobookMetadata{
		Title:    "Ancien titre",
		Author:   "Autre Auteur",
		Narrator: "Autre Narrateur",
	}
	require.NoError(t, NewTagger().WriteTags(dst, other))
	require.NoError(t, CopyTags(src, dst))

	s, err := ReadTags(dst)
	require.NoError(t, err)
	assert.Equal(t, "Le voyage fantastique", s.Title)
	assert.Equal(t, "Marc Tremblay", s.Narrator)
}
