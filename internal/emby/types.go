package emby

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spotlightapp/spotlight-server/internal/domain"
)

// DefaultFields are the item fields the carousel renders from.
var DefaultFields = []string{
	"PrimaryImageAspectRatio",
	"BackdropImageTags",
	"ImageTags",
	"ParentLogoImageTag",
	"ParentLogoItemId",
	"CriticRating",
	"CommunityRating",
	"OfficialRating",
	"PremiereDate",
	"ProductionYear",
	"Genres",
	"RunTimeTicks",
	"Taglines",
	"Overview",
	"OriginalTitle",
	"ProviderIds",
	"RemoteTrailers",
	"LocalTrailerCount",
}

// ItemsQuery holds the parameters of an items request.
type ItemsQuery struct {
	IncludeItemTypes    []string
	Recursive           bool
	Limit               int
	SortBy              []string
	SortOrder           string
	Fields              []string
	IsPlayed            *bool
	ParentID            string
	IDs                 []string
	AnyProviderIDEquals string
}

// DefaultItemsQuery is the candidate query: recent movies and shows.
func DefaultItemsQuery(limit int, unwatchedOnly bool) ItemsQuery {
	q := ItemsQuery{
		IncludeItemTypes: []string{string(domain.ItemMovie), string(domain.ItemSeries)},
		Recursive:        true,
		Limit:            limit,
		SortBy:           []string{"PremiereDate", "ProductionYear", "SortName"},
		SortOrder:        "Descending",
		Fields:           DefaultFields,
	}
	if unwatchedOnly {
		played := false
		q.IsPlayed = &played
	}
	return q
}

// Values encodes the query.
func (q ItemsQuery) Values() url.Values {
	v := url.Values{}
	if len(q.IncludeItemTypes) > 0 {
		v.Set("IncludeItemTypes", strings.Join(q.IncludeItemTypes, ","))
	}
	if q.Recursive {
		v.Set("Recursive", "true")
	}
	if q.Limit > 0 {
		v.Set("Limit", strconv.Itoa(q.Limit))
	}
	if len(q.SortBy) > 0 {
		v.Set("SortBy", strings.Join(q.SortBy, ","))
	}
	if q.SortOrder != "" {
		v.Set("SortOrder", q.SortOrder)
	}
	fields := q.Fields
	if len(fields) == 0 {
		fields = DefaultFields
	}
	v.Set("Fields", strings.Join(fields, ","))
	if q.IsPlayed != nil {
		v.Set("IsPlayed", strconv.FormatBool(*q.IsPlayed))
	}
	if q.ParentID != "" {
		v.Set("ParentId", q.ParentID)
	}
	if len(q.IDs) > 0 {
		v.Set("Ids", strings.Join(q.IDs, ","))
	}
	if q.AnyProviderIDEquals != "" {
		v.Set("AnyProviderIdEquals", q.AnyProviderIDEquals)
	}
	v.Set("EnableImageTypes", "Primary,Backdrop,Thumb,Logo,Banner")
	v.Set("EnableUserData", "false")
	v.Set("EnableTotalRecordCount", "false")
	return v
}

// ImageOptions selects an image variant.
type ImageOptions struct {
	Type     string // Primary, Backdrop, Thumb, Logo
	MaxWidth int
	Tag      string
}

// Raw API response types (internal)

type rawItemsResponse struct {
	Items            []rawItem `json:"Items"`
	TotalRecordCount int       `json:"TotalRecordCount"`
}

type rawItem struct {
	ID                 string            `json:"Id"`
	ServerID           string            `json:"ServerId"`
	Name               string            `json:"Name"`
	OriginalTitle      string            `json:"OriginalTitle"`
	Type               string            `json:"Type"`
	ProductionYear     int               `json:"ProductionYear"`
	PremiereDate       string            `json:"PremiereDate"`
	RunTimeTicks       int64             `json:"RunTimeTicks"`
	Genres             []string          `json:"Genres"`
	Overview           string            `json:"Overview"`
	Taglines           []string          `json:"Taglines"`
	OfficialRating     string            `json:"OfficialRating"`
	CriticRating       *float64          `json:"CriticRating"`
	CommunityRating    *float64          `json:"CommunityRating"`
	ImageTags          map[string]string `json:"ImageTags"`
	BackdropImageTags  []string          `json:"BackdropImageTags"`
	ParentLogoItemID   string            `json:"ParentLogoItemId"`
	ParentLogoImageTag string            `json:"ParentLogoImageTag"`
	ProviderIDs        map[string]string `json:"ProviderIds"`
	RemoteTrailers     []rawTrailer      `json:"RemoteTrailers"`
	LocalTrailerCount  int               `json:"LocalTrailerCount"`
}

type rawTrailer struct {
	URL  string `json:"Url"`
	Name string `json:"Name"`
}

type rawUser struct {
	ID     string `json:"Id"`
	Name   string `json:"Name"`
	Policy struct {
		IsAdministrator bool `json:"IsAdministrator"`
		IsDisabled      bool `json:"IsDisabled"`
	} `json:"Policy"`
}

type rawSystemInfo struct {
	ID         string `json:"Id"`
	ServerName string `json:"ServerName"`
	Version    string `json:"Version"`
}

func (r rawItem) toDomain() domain.MediaItem {
	item := domain.MediaItem{
		ID:                 r.ID,
		ServerID:           r.ServerID,
		Name:               r.Name,
		OriginalTitle:      r.OriginalTitle,
		Type:               domain.ItemType(r.Type),
		ProductionYear:     r.ProductionYear,
		RunTimeTicks:       r.RunTimeTicks,
		Genres:             r.Genres,
		Overview:           r.Overview,
		Taglines:           r.Taglines,
		OfficialRating:     r.OfficialRating,
		CriticRating:       r.CriticRating,
		CommunityRating:    r.CommunityRating,
		ImageTags:          r.ImageTags,
		BackdropImageTags:  r.BackdropImageTags,
		ParentLogoItemID:   r.ParentLogoItemID,
		ParentLogoImageTag: r.ParentLogoImageTag,
		ProviderIDs:        r.ProviderIDs,
		LocalTrailerCount:  r.LocalTrailerCount,
	}
	if r.PremiereDate != "" {
		if t, err := time.Parse(time.RFC3339, r.PremiereDate); err == nil {
			item.PremiereDate = t
		}
	}
	for _, t := range r.RemoteTrailers {
		if t.URL != "" {
			item.RemoteTrailers = append(item.RemoteTrailers, domain.RemoteTrailer{URL: t.URL, Name: t.Name})
		}
	}
	return item
}

func toDomainItems(raw []rawItem) []domain.MediaItem {
	items := make([]domain.MediaItem, 0, len(raw))
	for _, r := range raw {
		if r.ID == "" {
			continue
		}
		items = append(items, r.toDomain())
	}
	return items
}
