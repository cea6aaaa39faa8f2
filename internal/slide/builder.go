// Package slide builds carousel slides from host items. Building is
// synchronous and never touches the network; ratings and awards arrive
// later as patches into the empty regions every slide carries.
package slide

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/spotlightapp/spotlight-server/internal/domain"
	"github.com/spotlightapp/spotlight-server/internal/emby"
	"github.com/spotlightapp/spotlight-server/internal/normalize"
)

// Defaults for image sizes and colours.
const (
	DefaultImageWidth      = 1900
	DefaultLogoWidth       = 800
	DefaultBackgroundColor = "#000000"
	maxGenres              = 3
)

var mobilePattern = regexp.MustCompile(`(?i)Mobi|Android|iPhone|iPad|iPod`)

// youTubeID accepts the 11-character ids YouTube issues.
var youTubeID = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// Images builds host image and stream URLs; *emby.Client implements it.
type Images interface {
	ImageURL(itemID string, opts emby.ImageOptions) string
	StreamURL(itemID string) string
}

// Options configures a Builder.
type Options struct {
	ImageWidth      int
	LogoWidth       int
	BackgroundColor string
	HighlightColor  string
	VideoEnabled    bool
	AllowMobile     bool
	UserAgent       string // the browser the slides are built for
}

// Builder builds slides for one browser.
type Builder struct {
	images Images
	opts   Options
	mobile bool
}

// NewBuilder creates a builder.
func NewBuilder(images Images, opts Options) *Builder {
	if opts.ImageWidth <= 0 {
		opts.ImageWidth = DefaultImageWidth
	}
	if opts.LogoWidth <= 0 {
		opts.LogoWidth = DefaultLogoWidth
	}
	if opts.BackgroundColor == "" {
		opts.BackgroundColor = DefaultBackgroundColor
	}
	return &Builder{images: images, opts: opts, mobile: IsMobile(opts.UserAgent)}
}

// IsMobile reports whether ua belongs to a phone or tablet.
func IsMobile(ua string) bool {
	return mobilePattern.MatchString(ua)
}

// BuildAll builds the ring: real slides at positions 1..N and, when N > 1,
// a clone of the last item at 0 and of the first at N+1.
func (b *Builder) BuildAll(items []domain.MediaItem) []*domain.Slide {
	n := len(items)
	if n == 0 {
		return nil
	}
	if n == 1 {
		return []*domain.Slide{b.Build(&items[0], 1, 1, false)}
	}

	slides := make([]*domain.Slide, 0, n+2)
	slides = append(slides, b.Build(&items[n-1], 0, n, true))
	for i := range items {
		slides = append(slides, b.Build(&items[i], i+1, i+1, false))
	}
	slides = append(slides, b.Build(&items[0], n+1, 1, true))
	return slides
}

// Build builds the slide for item at ring position, showing real slide
// realIndex.
func (b *Builder) Build(item *domain.MediaItem, position, realIndex int, clone bool) *domain.Slide {
	s := &domain.Slide{
		Position:  position,
		RealIndex: realIndex,
		Clone:     clone,
		Item:      item,
	}
	key := s.Key()
	suffix := domID(key)
	if clone {
		suffix += "-clone"
	}

	node := &domain.SlideNode{
		ContainerID:     "spotlight-slide-" + strconv.Itoa(position),
		BackdropURL:     b.backdropURL(item),
		LogoURL:         b.logoURL(item),
		Title:           item.Name,
		Overview:        PlainOverview(item.Overview),
		Genres:          firstGenres(item.Genres),
		Year:            item.Year(),
		Runtime:         FormatRuntime(item.RunTimeTicks),
		OfficialRating:  item.OfficialRating,
		AwardsRowID:     "spotlight-awards-" + suffix,
		RatingsID:       "spotlight-ratings-" + suffix,
		BackgroundColor: b.opts.BackgroundColor,
		HighlightColor:  b.opts.HighlightColor,
	}
	if len(item.Taglines) > 0 {
		node.Tagline = strings.TrimSpace(item.Taglines[0])
	}
	s.Node = node
	s.Video = b.video(item)
	s.HasVideo = s.Video.Attempt
	return s
}

// backdropURL prefers a backdrop, then the primary image, then a thumb, and
// finally an untagged primary request.
func (b *Builder) backdropURL(item *domain.MediaItem) string {
	opts := emby.ImageOptions{MaxWidth: b.opts.ImageWidth}
	switch {
	case len(item.BackdropImageTags) > 0:
		opts.Type, opts.Tag = "Backdrop", item.BackdropImageTags[0]
	case item.ImageTags["Primary"] != "":
		opts.Type, opts.Tag = "Primary", item.ImageTags["Primary"]
	case item.ImageTags["Thumb"] != "":
		opts.Type, opts.Tag = "Thumb", item.ImageTags["Thumb"]
	default:
		opts.Type = "Primary"
	}
	return b.images.ImageURL(item.ID, opts)
}

// logoURL returns the item's logo, else its parent's, else "".
func (b *Builder) logoURL(item *domain.MediaItem) string {
	if tag := item.ImageTags["Logo"]; tag != "" {
		return b.images.ImageURL(item.ID, emby.ImageOptions{Type: "Logo", MaxWidth: b.opts.LogoWidth, Tag: tag})
	}
	if item.ParentLogoItemID != "" && item.ParentLogoImageTag != "" {
		return b.images.ImageURL(item.ParentLogoItemID, emby.ImageOptions{
			Type: "Logo", MaxWidth: b.opts.LogoWidth, Tag: item.ParentLogoImageTag,
		})
	}
	return ""
}

// video decides the trailer source: the first YouTube remote trailer, else a
// local trailer, else none.
func (b *Builder) video(item *domain.MediaItem) domain.VideoInfo {
	var info domain.VideoInfo
	for _, t := range item.RemoteTrailers {
		if id := YouTubeID(t.URL); id != "" {
			info = domain.VideoInfo{Source: domain.VideoYouTube, VideoID: id, URL: t.URL}
			break
		}
	}
	if info.Source == domain.VideoNone && item.LocalTrailerCount > 0 {
		// The trailer item is resolved when the player is created; until
		// then the stream points at the item itself.
		info = domain.VideoInfo{Source: domain.VideoNative, VideoID: item.ID, URL: b.images.StreamURL(item.ID)}
	}
	info.Attempt = info.Source != domain.VideoNone && b.opts.VideoEnabled && (!b.mobile || b.opts.AllowMobile)
	return info
}

// YouTubeID extracts the video id from a YouTube watch, short or embed URL.
func YouTubeID(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")

	var id string
	switch host {
	case "youtu.be":
		id = strings.Trim(u.Path, "/")
	case "youtube.com", "youtube-nocookie.com":
		if v := u.Query().Get("v"); v != "" {
			id = v
			break
		}
		for _, prefix := range []string{"/embed/", "/v/", "/shorts/"} {
			if rest, ok := strings.CutPrefix(u.Path, prefix); ok {
				id, _, _ = strings.Cut(rest, "/")
				break
			}
		}
	}
	if !youTubeID.MatchString(id) {
		return ""
	}
	return id
}

// FormatRuntime renders run time ticks as "2h 16min" or "45min".
func FormatRuntime(ticks int64) string {
	minutes := int(ticks / 600_000_000)
	if minutes <= 0 {
		return ""
	}
	h, m := minutes/60, minutes%60
	if h == 0 {
		return strconv.Itoa(m) + "min"
	}
	return strconv.Itoa(h) + "h " + strconv.Itoa(m) + "min"
}

func firstGenres(genres []string) []string {
	out := make([]string, 0, maxGenres)
	for _, g := range genres {
		if g = strings.TrimSpace(g); g == "" {
			continue
		}
		out = append(out, g)
		if len(out) == maxGenres {
			break
		}
	}
	return out
}

// domID turns a slide key into an id attribute value.
func domID(key domain.SlideKey) string {
	idx, itemID, err := key.Parse()
	if err != nil {
		return normalize.Slugify(string(key))
	}
	return strconv.Itoa(idx) + "-" + normalize.Slugify(itemID)
}
