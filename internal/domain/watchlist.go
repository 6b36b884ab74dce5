package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// WatchStatus es el estado de visualización de una entrada del watchlist.
type WatchStatus string

const (
	StatusUnwatched   WatchStatus = "Unwatched"
	StatusWatching    WatchStatus = "Watching"
	StatusCompleted   WatchStatus = "Completed"
	StatusDropped     WatchStatus = "Dropped"
	StatusOnHold      WatchStatus = "On Hold"
	StatusNotReleased WatchStatus = "Not Released"
)

// WatchStatuses lista todos los estados en orden estable.
var WatchStatuses = []WatchStatus{
	StatusUnwatched,
	StatusWatching,
	StatusCompleted,
	StatusDropped,
	StatusOnHold,
	StatusNotReleased,
}

// ParseWatchStatus acepta el valor canónico o variantes sin espacios
// ("OnHold", "not released"). Vacío equivale a Unwatched.
func ParseWatchStatus(raw string) (WatchStatus, error) {
	key := statusKey(raw)
	if key == "" {
		return StatusUnwatched, nil
	}
	for _, s := range WatchStatuses {
		if statusKey(string(s)) == key {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown watch status %q", raw)
}

func (s WatchStatus) Valid() bool {
	for _, v := range WatchStatuses {
		if v == s {
			return true
		}
	}
	return false
}

func (s *WatchStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseWatchStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func statusKey(raw string) string {
	return strings.ToLower(strings.Join(strings.Fields(raw), ""))
}

// AnimeSnapshot es la copia desnormalizada de los datos del catálogo al agregar.
type AnimeSnapshot map[string]any

// MalID extrae el identificador externo (mal_id) del snapshot, si existe.
func (a AnimeSnapshot) MalID() (int, bool) {
	switch v := a["mal_id"].(type) {
	case float64:
		if v != float64(int(v)) {
			return 0, false
		}
		return int(v), true
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}

const DefaultWatchURL = "#"

type WatchlistEntry struct {
	ID              string        `json:"id"`
	OwnerID         string        `json:"ownerId,omitempty"`
	ExternalAnimeID int           `json:"externalAnimeId"`
	AnimeSnapshot   AnimeSnapshot `json:"animeData"`
	Status          WatchStatus   `json:"animeStatus"`
	WatchURL        string        `json:"urlToWatch"`
	AddedAt         time.Time     `json:"addedAt"`
}

// WithoutOwner devuelve la entrada sin ownerId para las proyecciones de listado.
func (e WatchlistEntry) WithoutOwner() WatchlistEntry {
	e.OwnerID = ""
	return e
}

// WatchlistPatch contiene los campos modificables; nil significa "sin cambios".
type WatchlistPatch struct {
	Status        *WatchStatus
	AnimeSnapshot AnimeSnapshot
	WatchURL      *string
}

// WatchlistStats agrupa las entradas de un usuario por estado.
type WatchlistStats struct {
	Total    int                 `json:"total"`
	ByStatus map[WatchStatus]int `json:"byStatus"`
}
