package invites

import (
	"context"
	"errors"
	"time"

	"github.com/bananalabs-oss/hatcher/internal/models"
)

// TTL is how long an invite stays visible to its receiver.
const TTL = 300 * time.Second

var ErrNoInvite = errors.New("no live invite")

// Store keeps at most one invite per sender and receiver pair.
type Store interface {
	// Send replaces any earlier invite from the same sender to the same receiver.
	Send(ctx context.Context, inv *models.Invite) error
	// Latest returns the receiver's most recent invite younger than TTL at now.
	Latest(ctx context.Context, receiverID string, now time.Time) (*models.Invite, error)
	Clear(ctx context.Context, id string) error
}

func cutoff(now time.Time) int64 {
	return now.Add(-TTL).Unix()
}
