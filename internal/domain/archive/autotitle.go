package archive

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"assistantportal/internal/pkg/jwt"
	"assistantportal/internal/pkg/utils"
)

// TitleRequest asks the assistant to name a conversation from its first message.
type TitleRequest struct {
	ArchiveID   string `json:"archiveId"`
	UserID      string `json:"userId"`
	MessageText string `json:"messageText"`
	// Token is forwarded to the assistant; the title stream outlives the request.
	Token string `json:"-"`
}

// TitleSource opens the title stream.
type TitleSource interface {
	Title(ctx context.Context, req TitleRequest) (io.ReadCloser, error)
}

// ShouldAutoTitle: only the first message of a non-default archive names it.
func ShouldAutoTitle(a *Archive, priorMessages int64) bool {
	return a != nil && !a.IsDefault && priorMessages == 0
}

// AutoTitler renames an archive progressively while its title streams in.
type AutoTitler struct {
	store   *Store
	source  TitleSource
	timeout time.Duration
}

func NewAutoTitler(store *Store, source TitleSource, timeout time.Duration) *AutoTitler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &AutoTitler{store: store, source: source, timeout: timeout}
}

// Start runs the title stream on its own goroutine. It never blocks the
// caller and never reports failure to it.
func (t *AutoTitler) Start(req TitleRequest) {
	utils.SafeGo("autotitle", func() {
		ctx, cancel := context.WithTimeout(jwt.WithToken(context.Background(), req.Token), t.timeout)
		defer cancel()

		body, err := t.source.Title(ctx, req)
		if err != nil {
			log.Printf("event=autotitle_failed archive_id=%s stage=open error=%v", req.ArchiveID, err)
			return
		}
		defer body.Close()

		if _, err := t.Run(ctx, req.UserID, req.ArchiveID, body); err != nil {
			log.Printf("event=autotitle_failed archive_id=%s stage=stream error=%v", req.ArchiveID, err)
		}
	})
}

// Run consumes r, renaming after every chunk that changes the trimmed title,
// and applies the final title once more at the end. It returns the final title.
// On a read error it stops; titles already applied stay.
func (t *AutoTitler) Run(ctx context.Context, userID, archiveID string, r io.Reader) (string, error) {
	var (
		acc     []byte
		applied string
		buf     = make([]byte, 512)
	)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			acc = append(acc, buf[:n]...)
			title := strings.TrimSpace(string(completeRunes(acc)))
			if title != "" && title != applied {
				if rerr := t.store.Rename(ctx, userID, archiveID, title); rerr != nil {
					return applied, rerr
				}
				applied = title
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return applied, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return applied, ctxErr
		}
	}

	final := strings.TrimSpace(string(acc))
	if final == "" {
		return applied, nil
	}
	if err := t.store.Rename(ctx, userID, archiveID, final); err != nil {
		return applied, err
	}
	return final, nil
}

// completeRunes drops a trailing partial UTF-8 sequence.
func completeRunes(b []byte) []byte {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if !utf8.FullRune(b[i:]) {
				return b[:i]
			}
			break
		}
	}
	return b
}
