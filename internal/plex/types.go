package plex

import "fmt"

// Library is a Plex library section
type Library struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"` // movie or show
}

// Item is a media node in a library: movie, show, season or episode.
// RatingKey is the stable identifier within the server.
type Item struct {
	RatingKey        string  `json:"rating_key"`
	Key              string  `json:"key"`
	Title            string  `json:"title"`
	Type             string  `json:"type"`
	Year             int     `json:"year,omitempty"`
	Index            int     `json:"index,omitempty"`        // episode or season number
	ParentIndex      int     `json:"parent_index,omitempty"` // season number for episodes
	GrandparentTitle string  `json:"grandparent_title,omitempty"`
	LeafCount        int     `json:"leaf_count,omitempty"`
	Media            []Media `json:"-"`
}

// Media is a media container attached to an item
type Media struct {
	Parts []Part
}

// Part is a playable file belonging to a media container
type Part struct {
	ID      int
	Key     string
	File    string
	Streams []Stream
}

// Stream is a single audio/video/subtitle stream inside a part
type Stream struct {
	ID           int
	StreamType   int // 1 video, 2 audio, 3 subtitle
	Language     string
	LanguageCode string
	Codec        string
	Forced       bool
	SDH          bool
	Selected     bool
}

// StreamInfo describes a subtitle stream for API consumers
type StreamInfo struct {
	ID           int    `json:"id"`
	PartID       int    `json:"part_id"`
	Language     string `json:"language"`
	LanguageCode string `json:"language_code"`
	Codec        string `json:"codec"`
	Forced       bool   `json:"forced"`
	SDH          bool   `json:"sdh"`
	Selected     bool   `json:"selected"`
}

// IsLeaf reports whether the item is directly actionable (movie or episode)
func (i *Item) IsLeaf() bool {
	return i.Type == "movie" || i.Type == "episode"
}

// Label returns the display label used in progress events and result lists
func (i *Item) Label() string {
	switch i.Type {
	case "episode":
		return fmt.Sprintf("%s S%02dE%02d - %s", i.GrandparentTitle, i.ParentIndex, i.Index, i.Title)
	case "movie":
		if i.Year > 0 {
			return fmt.Sprintf("%s (%d)", i.Title, i.Year)
		}
		return i.Title
	default:
		return i.Title
	}
}

// Plex JSON wire structures

type libraryContainer struct {
	MediaContainer struct {
		Directory []struct {
			Key   string `json:"key"`
			Title string `json:"title"`
			Type  string `json:"type"`
		} `json:"Directory"`
	} `json:"MediaContainer"`
}

type metadataContainer struct {
	MediaContainer struct {
		FriendlyName string         `json:"friendlyName"`
		Metadata     []itemMetadata `json:"Metadata"`
	} `json:"MediaContainer"`
}

type itemMetadata struct {
	RatingKey        string      `json:"ratingKey"`
	Key              string      `json:"key"`
	Title            string      `json:"title"`
	Type             string      `json:"type"`
	Year             int         `json:"year"`
	Index            int         `json:"index"`
	ParentIndex      int         `json:"parentIndex"`
	GrandparentTitle string      `json:"grandparentTitle"`
	LeafCount        int         `json:"leafCount"`
	Media            []wireMedia `json:"Media"`
}

type wireMedia struct {
	Part []wirePart `json:"Part"`
}

type wirePart struct {
	ID     int          `json:"id"`
	Key    string       `json:"key"`
	File   string       `json:"file"`
	Stream []wireStream `json:"Stream"`
}

type wireStream struct {
	ID              int    `json:"id"`
	StreamType      int    `json:"streamType"`
	Language        string `json:"language"`
	LanguageCode    string `json:"languageCode"`
	Codec           string `json:"codec"`
	Forced          int    `json:"forced"`
	HearingImpaired int    `json:"hearingImpaired"`
	Selected        int    `json:"selected"`
}

func (m itemMetadata) toItem() Item {
	item := Item{
		RatingKey:        m.RatingKey,
		Key:              m.Key,
		Title:            m.Title,
		Type:             m.Type,
		Year:             m.Year,
		Index:            m.Index,
		ParentIndex:      m.ParentIndex,
		GrandparentTitle: m.GrandparentTitle,
		LeafCount:        m.LeafCount,
	}
	for _, wm := range m.Media {
		media := Media{}
		for _, wp := range wm.Part {
			part := Part{ID: wp.ID, Key: wp.Key, File: wp.File}
			for _, ws := range wp.Stream {
				part.Streams = append(part.Streams, Stream{
					ID:           ws.ID,
					StreamType:   ws.StreamType,
					Language:     ws.Language,
					LanguageCode: ws.LanguageCode,
					Codec:        ws.Codec,
					Forced:       ws.Forced != 0,
					SDH:          ws.HearingImpaired != 0,
					Selected:     ws.Selected != 0,
				})
			}
			media.Parts = append(media.Parts, part)
		}
		item.Media = append(item.Media, media)
	}
	return item
}
