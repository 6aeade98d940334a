package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"streamfm/model"
	"streamfm/service"
)

// trackItem wraps [model.Track] to implement list.Item.
type trackItem struct {
	track    model.Track
	favorite bool
}

func (i trackItem) FilterValue() string { return i.track.Title }
func (i trackItem) Title() string {
	if i.favorite {
		return "♥ " + i.track.Title
	}
	return i.track.Title
}
func (i trackItem) Description() string {
	desc := i.track.Artist
	if i.track.Album != "" && i.track.Album != model.DefaultAlbum {
		desc = fmt.Sprintf("%s • %s", desc, i.track.Album)
	}
	if !i.track.HasPlayableURL() {
		desc = fmt.Sprintf("%s • %s", desc, "no media")
	}
	return desc
}

// trackListModel is the catalog tab: the full track list with a search
// header. With favoritesOnly set it becomes the favorites tab instead.
type trackListModel struct {
	deps          *Deps
	list          list.Model
	search        textinput.Model
	searching     bool
	searchApplied bool
	tracks        []model.Track
	favs          map[int64]bool
	favoritesOnly bool
	status        string
	width         int
	height        int
}

func newTrackListModel(deps *Deps, favoritesOnly bool) *trackListModel {
	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Catalog"
	if favoritesOnly {
		l.Title = "Favorites"
	}
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)

	search := textinput.New()
	search.Placeholder = "search title or artist"
	search.CharLimit = 64

	return &trackListModel{
		deps:          deps,
		list:          l,
		search:        search,
		favs:          make(map[int64]bool),
		favoritesOnly: favoritesOnly,
	}
}

func (t *trackListModel) setSize(width, height int) {
	t.width = width
	t.height = height
	headroom := 2
	if !t.favoritesOnly {
		headroom = 4
	}
	t.list.SetSize(width-2, height-headroom)
}

// load fetches the catalog.
func (t *trackListModel) load() tea.Cmd {
	return func() tea.Msg {
		tracks, err := t.deps.Tracks.All(context.Background())
		return tracksLoadedMsg{tracks: tracks, err: err}
	}
}

func (t *trackListModel) runSearch(query string) tea.Cmd {
	return func() tea.Msg {
		tracks, err := t.deps.Tracks.Search(context.Background(), service.SearchParams{Query: query})
		return tracksLoadedMsg{tracks: tracks, search: true, err: err}
	}
}

func (t *trackListModel) setTracks(tracks []model.Track, fromSearch bool) {
	t.tracks = tracks
	t.searchApplied = fromSearch
	t.rebuild()
}

func (t *trackListModel) setFavorites(ids []int64) {
	t.favs = make(map[int64]bool, len(ids))
	for _, id := range ids {
		t.favs[id] = true
	}
	t.rebuild()
}

func (t *trackListModel) rebuild() {
	items := make([]list.Item, 0, len(t.tracks))
	for _, track := range t.tracks {
		if t.favoritesOnly && !t.favs[track.ID] {
			continue
		}
		items = append(items, trackItem{track: track, favorite: t.favs[track.ID]})
	}
	t.list.SetItems(items)
}

func (t *trackListModel) selected() (model.Track, bool) {
	item, ok := t.list.SelectedItem().(trackItem)
	if !ok {
		return model.Track{}, false
	}
	return item.track, true
}

func (t *trackListModel) handleKey(msg tea.KeyMsg) tea.Cmd {
	if t.searching {
		switch msg.String() {
		case "enter":
			t.searching = false
			t.search.Blur()
			query := t.search.Value()
			if query == "" {
				return t.load()
			}
			return t.runSearch(query)
		case "esc":
			t.searching = false
			t.search.Blur()
			t.search.SetValue("")
			if t.searchApplied {
				return t.load()
			}
			return nil
		default:
			var cmd tea.Cmd
			t.search, cmd = t.search.Update(msg)
			return cmd
		}
	}

	switch msg.String() {
	case "/":
		if !t.favoritesOnly {
			t.searching = true
			return t.search.Focus()
		}
	case "enter":
		if track, ok := t.selected(); ok {
			t.deps.Player.SetTrack(&track)
			return func() tea.Msg {
				if err := t.deps.Player.Play(); err != nil {
					return errMsg{err: err}
				}
				return nil
			}
		}
	case "f":
		if track, ok := t.selected(); ok {
			return func() tea.Msg {
				added, err := t.deps.Favorites.Toggle(context.Background(), track.ID)
				return favoriteToggled{songID: track.ID, added: added, err: err}
			}
		}
	}

	var cmd tea.Cmd
	t.list, cmd = t.list.Update(msg)
	return cmd
}

func (t *trackListModel) View() string {
	header := ""
	if !t.favoritesOnly {
		header = t.search.View() + "\n"
		if t.searchApplied {
			header += styles.dim.Render(fmt.Sprintf("search results (%d) • esc to clear", len(t.list.Items()))) + "\n"
		}
	}
	body := t.list.View()
	if t.favoritesOnly && len(t.list.Items()) == 0 {
		body = styles.dim.Render("No favorites yet. Press f on a track to add one.")
	}
	if t.status != "" {
		body += "\n" + styles.warn.Render(t.status)
	}
	return header + body
}
