package transport

import (
	"context"

	"github.com/dmitrijs2005/gophsync/internal/models"
	"google.golang.org/protobuf/types/known/structpb"
)

// Sender is the remote transport contract: TrySend never reports failure.
type Sender interface {
	TrySend(ctx context.Context, entity models.Entity)
}

// NopSender drops everything.
type NopSender struct{}

func (NopSender) TrySend(context.Context, models.Entity) {}

// Pusher delivers one entity snapshot.
type Pusher interface {
	Push(ctx context.Context, entityType, id string, entity *structpb.Struct) error
}

// ToStruct converts entity into its protobuf document form.
func ToStruct(entity models.Entity) (*structpb.Struct, error) {
	doc, err := models.ToDocument(entity)
	if err != nil {
		return nil, err
	}
	return structpb.NewStruct(doc)
}
