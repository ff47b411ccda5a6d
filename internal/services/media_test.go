package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/pawhaven/pawhaven-backend/internal/models"
)

func img(primary bool) models.CatMedia {
	return models.CatMedia{MediaType: models.MediaTypeImage, IsPrimary: primary}
}

func vid(primary bool) models.CatMedia {
	return models.CatMedia{MediaType: models.MediaTypeVideo, IsPrimary: primary}
}

func TestDecidePrimary(t *testing.T) {
	cases := []struct {
		name      string
		mediaType string
		existing  []models.CatMedia
		requested bool
		want      bool
	}{
		{"first file is always primary", models.MediaTypeImage, nil, false, true},
		{"first video is primary too", models.MediaTypeVideo, nil, false, true},
		{"first image among videos wins the slot", models.MediaTypeImage, []models.CatMedia{vid(true)}, false, true},
		{"second image honors the request", models.MediaTypeImage, []models.CatMedia{img(true)}, true, true},
		{"second image is not promoted silently", models.MediaTypeImage, []models.CatMedia{img(true)}, false, false},
		{"video never displaces an image", models.MediaTypeVideo, []models.CatMedia{img(true)}, true, false},
		{"video never displaces another video", models.MediaTypeVideo, []models.CatMedia{vid(true)}, true, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DecidePrimary(tc.mediaType, tc.existing, tc.requested)
			if got != tc.want {
				t.Errorf("DecidePrimary(%s, %d existing, requested=%v) = %v, want %v",
					tc.mediaType, len(tc.existing), tc.requested, got, tc.want)
			}
		})
	}
}

// memMedia is an in-memory MediaStore with one listing owner table.
type memMedia struct {
	mu      sync.Mutex
	owners  map[string]string
	rows    map[string][]models.CatMedia
	nextID  int
	saveErr error
}

func newMemMedia() *memMedia {
	return &memMedia{
		owners: make(map[string]string),
		rows:   make(map[string][]models.CatMedia),
	}
}

func (m *memMedia) ListingOwner(_ context.Context, catID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	owner, ok := m.owners[catID]
	if !ok {
		return "", ErrListingNotFound
	}
	return owner, nil
}

func (m *memMedia) ListMedia(_ context.Context, catID string) ([]models.CatMedia, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.CatMedia(nil), m.rows[catID]...), nil
}

func (m *memMedia) SaveMedia(_ context.Context, media *models.CatMedia, demoteOthers bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	if demoteOthers {
		existing := m.rows[media.CatID]
		for i := range existing {
			existing[i].IsPrimary = false
		}
	}
	m.nextID++
	media.ID = fmt.Sprintf("m%d", m.nextID)
	m.rows[media.CatID] = append(m.rows[media.CatID], *media)
	return nil
}

type fakeUploader struct {
	uploads []string
	err     error
}

func (u *fakeUploader) Upload(_ context.Context, _ multipart.File, path string) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	u.uploads = append(u.uploads, path)
	return "https://cdn.example.com/" + path, nil
}

type fakeFile struct {
	*strings.Reader
}

func (fakeFile) Close() error { return nil }

func newFakeFile(content string) multipart.File {
	return fakeFile{strings.NewReader(content)}
}

type MediaServiceSuite struct {
	suite.Suite
	store    *memMedia
	uploader *fakeUploader
	svc      *MediaService
	ctx      context.Context
}

func TestMediaServiceSuite(t *testing.T) {
	suite.Run(t, new(MediaServiceSuite))
}

func (s *MediaServiceSuite) SetupTest() {
	s.store = newMemMedia()
	s.store.owners["cat1"] = "owner1"
	s.uploader = &fakeUploader{}
	s.svc = NewMediaService(s.store, s.uploader)
	s.ctx = context.Background()
}

func (s *MediaServiceSuite) TestIngestFirstUpload() {
	media, err := s.svc.Ingest(s.ctx, "cat1", "owner1", newFakeFile("jpeg-bytes"), "photo.JPG", models.MediaTypeImage, false)
	s.Require().NoError(err)

	s.True(media.IsPrimary)
	s.True(strings.HasPrefix(media.FilePath, "owner1/cat1/"))
	s.True(strings.HasSuffix(media.FilePath, ".jpg"))
	s.Equal("https://cdn.example.com/"+media.FilePath, media.URL)
	s.NotEmpty(media.ID)
}

func (s *MediaServiceSuite) TestIngestDemotesOldPrimary() {
	first, err := s.svc.Ingest(s.ctx, "cat1", "owner1", newFakeFile("a"), "a.png", models.MediaTypeImage, false)
	s.Require().NoError(err)
	s.True(first.IsPrimary)

	second, err := s.svc.Ingest(s.ctx, "cat1", "owner1", newFakeFile("b"), "b.png", models.MediaTypeImage, true)
	s.Require().NoError(err)
	s.True(second.IsPrimary)

	rows, _ := s.store.ListMedia(s.ctx, "cat1")
	primaries := 0
	for _, m := range rows {
		if m.IsPrimary {
			primaries++
		}
	}
	s.Equal(1, primaries)
}

func (s *MediaServiceSuite) TestIngestSecondImageStaysSecondary() {
	_, err := s.svc.Ingest(s.ctx, "cat1", "owner1", newFakeFile("a"), "a.png", models.MediaTypeImage, false)
	s.Require().NoError(err)

	second, err := s.svc.Ingest(s.ctx, "cat1", "owner1", newFakeFile("b"), "b.png", models.MediaTypeImage, false)
	s.Require().NoError(err)
	s.False(second.IsPrimary)

	rows, _ := s.store.ListMedia(s.ctx, "cat1")
	s.True(rows[0].IsPrimary)
}

func (s *MediaServiceSuite) TestIngestVideoNeverDisplacesImage() {
	_, err := s.svc.Ingest(s.ctx, "cat1", "owner1", newFakeFile("a"), "a.png", models.MediaTypeImage, false)
	s.Require().NoError(err)

	video, err := s.svc.Ingest(s.ctx, "cat1", "owner1", newFakeFile("v"), "v.mp4", models.MediaTypeVideo, true)
	s.Require().NoError(err)
	s.False(video.IsPrimary)
}

func (s *MediaServiceSuite) TestIngestRejectsNonOwner() {
	_, err := s.svc.Ingest(s.ctx, "cat1", "intruder", newFakeFile("a"), "a.png", models.MediaTypeImage, false)
	s.Require().ErrorIs(err, ErrNotListingOwner)
	s.Empty(s.uploader.uploads)
}

func (s *MediaServiceSuite) TestIngestUnknownListing() {
	_, err := s.svc.Ingest(s.ctx, "ghost", "owner1", newFakeFile("a"), "a.png", models.MediaTypeImage, false)
	s.Require().ErrorIs(err, ErrListingNotFound)
}

func (s *MediaServiceSuite) TestIngestStorageFailure() {
	s.uploader.err = errors.New("cloud down")
	_, err := s.svc.Ingest(s.ctx, "cat1", "owner1", newFakeFile("a"), "a.png", models.MediaTypeImage, false)
	s.Require().ErrorIs(err, ErrStorage)

	rows, _ := s.store.ListMedia(s.ctx, "cat1")
	s.Empty(rows)
}

func (s *MediaServiceSuite) TestIngestMetadataFailureAfterUpload() {
	s.store.saveErr = errors.New("insert failed")
	_, err := s.svc.Ingest(s.ctx, "cat1", "owner1", newFakeFile("a"), "a.png", models.MediaTypeImage, false)
	s.Require().ErrorIs(err, ErrMetadata)

	// The file reached storage before the metadata write failed.
	s.Len(s.uploader.uploads, 1)
}
