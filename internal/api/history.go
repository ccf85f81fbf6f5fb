package api

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/rickgao/chatlink/internal/model"
)

// DefaultPaginationTimeout bounds AllRoomMessages when ctx has no deadline.
const DefaultPaginationTimeout = time.Minute

// maxPages stops runaway pagination against a server that ignores paging.
const maxPages = 100

// ErrEmptyRoom is returned when no room id is given.
var ErrEmptyRoom = errors.New("room id is required")

// RoomMessages fetches one page of a room's history.
func (c *Client) RoomMessages(ctx context.Context, roomID string, opts HistoryOptions) ([]HistoryMessage, error) {
	if roomID == "" {
		return nil, ErrEmptyRoom
	}

	query := url.Values{}
	if opts.Page > 0 {
		query.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.PageSize > 0 {
		query.Set("pageSize", strconv.Itoa(opts.PageSize))
	}
	if opts.LastMessageID > 0 {
		query.Set("lastMessageId", strconv.FormatInt(opts.LastMessageID, 10))
	}

	var resp []HistoryMessage
	path := "/rooms/" + url.PathEscape(roomID) + "/messages"
	if err := c.get(ctx, path, query, &resp); err != nil {
		return nil, fmt.Errorf("get room messages: %w", err)
	}

	return resp, nil
}

// AllRoomMessages pages through a room's history and returns it as chat
// envelopes, oldest first. Paging stops at the first short page. Messages
// already seen by id are skipped, so a server that ignores paging and
// returns everything on each call still yields each message once.
func (c *Client) AllRoomMessages(ctx context.Context, roomID string) ([]model.ChatMessage, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultPaginationTimeout)
		defer cancel()
	}

	var (
		all    []model.ChatMessage
		seen   = make(map[int64]struct{})
		lastID int64
	)

	for page := 1; page <= maxPages; page++ {
		batch, err := c.RoomMessages(ctx, roomID, HistoryOptions{
			Page:          page,
			PageSize:      c.pageSize,
			LastMessageID: lastID,
		})
		if err != nil {
			return nil, err
		}

		added := 0
		for _, m := range batch {
			if m.ID != 0 {
				if _, dup := seen[m.ID]; dup {
					continue
				}
				seen[m.ID] = struct{}{}
				if m.ID > lastID {
					lastID = m.ID
				}
			}
			all = append(all, m.ChatMessage())
			added++
		}

		if len(batch) < c.pageSize || added == 0 {
			break
		}
	}

	c.logger.Debug("fetched room history", "room", roomID, "messages", len(all))
	return all, nil
}
