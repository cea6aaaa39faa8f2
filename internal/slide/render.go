package slide

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"

	"github.com/spotlightapp/spotlight-server/internal/domain"
	"github.com/spotlightapp/spotlight-server/internal/normalize"
)

// ContainerID is the id of the element the widget injects into the host page.
const ContainerID = "emby-spotlight-slider-container"

const slideTemplate = `<div class="spotlight-slide{{if .Clone}} spotlight-clone{{end}}" id="{{.Node.ContainerID}}" data-position="{{.Position}}" data-real-index="{{.RealIndex}}" data-slide-key="{{.Key}}" data-item-id="{{.Item.ID}}" style="background-color: {{.Node.BackgroundColor}}">
<div class="spotlight-backdrop" style="background-image: url('{{.Node.BackdropURL}}')"></div>
{{- if .HasVideo}}
<div class="spotlight-video" data-player-key="{{.PlayerKey}}" data-source="{{.Video.Source}}"></div>
{{- end}}
<div class="spotlight-gradient" style="--spotlight-bg: {{.Node.BackgroundColor}}"></div>
<div class="spotlight-vignette"></div>
<div class="spotlight-content">
{{- if .Node.LogoURL}}
<img class="banner-logo" src="{{.Node.LogoURL}}" alt="{{.Node.Title}} Logo" draggable="false">
{{- else}}
<div class="banner-title">{{.Node.Title}}</div>
{{- end}}
{{- if .Node.Tagline}}
<div class="spotlight-tagline">{{.Node.Tagline}}</div>
{{- end}}
<div class="spotlight-awards" id="{{.Node.AwardsRowID}}"></div>
<div class="spotlight-info">
{{- range .Node.Genres}}<span class="spotlight-genre genre-{{slug .}}">{{.}}</span>{{end}}
{{- if .Node.Year}}<span class="spotlight-year">{{.Node.Year}}</span>{{end}}
{{- if .Node.Runtime}}<span class="spotlight-runtime">{{.Node.Runtime}}</span>{{end}}
{{- if .Node.OfficialRating}}<span class="spotlight-official-rating">{{.Node.OfficialRating}}</span>{{end}}
</div>
<div class="spotlight-ratings" id="{{.Node.RatingsID}}"></div>
{{- if .Node.Overview}}
<p class="spotlight-overview">{{.Node.Overview}}</p>
{{- end}}
</div>
</div>`

const carouselTemplate = `<div id="{{.ID}}" class="spotlight-container" style="margin-top: {{.MarginTop}}">
<div class="spotlight-track" style="transform: translateX(-{{.Offset}}%)">
{{- range .Slides}}
{{.}}
{{- end}}
</div>
<div class="spotlight-dots">
{{- range .Dots}}<button class="spotlight-dot{{if .Active}} active{{end}}" data-index="{{.Index}}" aria-label="Slide {{.Index}}"></button>{{end}}
</div>
</div>`

var slideTmpl = template.Must(template.New("slide").
	Funcs(template.FuncMap{"slug": normalize.Slugify}).
	Parse(slideTemplate))

var carouselTmpl = template.Must(template.New("carousel").Parse(carouselTemplate))

// Render renders one slide into the fragment the browser inserts.
func Render(s *domain.Slide) (template.HTML, error) {
	if s == nil || s.Node == nil || s.Item == nil {
		return "", fmt.Errorf("render slide: incomplete slide")
	}
	var buf bytes.Buffer
	if err := slideTmpl.Execute(&buf, s); err != nil {
		return "", fmt.Errorf("render slide %d: %w", s.Position, err)
	}
	return template.HTML(buf.String()), nil //nolint:gosec // produced by html/template
}

type dot struct {
	Index  int
	Active bool
}

// RenderCarousel renders the whole widget with the ring positioned on the
// real slide current.
func RenderCarousel(slides []*domain.Slide, current int, marginTop string) (template.HTML, error) {
	data := struct {
		ID        string
		MarginTop string
		Offset    string
		Slides    []template.HTML
		Dots      []dot
	}{ID: ContainerID, MarginTop: marginTop}

	position := current
	for _, s := range slides {
		html, err := Render(s)
		if err != nil {
			return "", err
		}
		data.Slides = append(data.Slides, html)
		if !s.Clone {
			data.Dots = append(data.Dots, dot{Index: s.RealIndex, Active: s.RealIndex == current})
		}
	}
	if len(slides) == 1 {
		position = 0
	}
	data.Offset = strconv.Itoa(position * 100)

	var buf bytes.Buffer
	if err := carouselTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render carousel: %w", err)
	}
	return template.HTML(buf.String()), nil //nolint:gosec // produced by html/template
}
