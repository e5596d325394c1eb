package flows

import (
	"context"

	"bitbucket.org/mmdatafocus/stockbot_backend/line"
	"bitbucket.org/mmdatafocus/stockbot_backend/utils"
	"github.com/sirupsen/logrus"
)

// Photos turns an inbound image message into a stored photo reference.
// PhotoService is the production implementation; tests use a fake.
type Photos interface {
	Ingest(ctx context.Context, messageID string) (string, error)
}

// PhotoService downloads image content from the platform and stores it in the
// item photo bucket.
type PhotoService struct {
	Client *line.Client
	Logger *logrus.Logger
}

func NewPhotoService(client *line.Client, logger *logrus.Logger) *PhotoService {
	return &PhotoService{Client: client, Logger: logger}
}

func (p *PhotoService) Ingest(ctx context.Context, messageID string) (string, error) {
	data, err := p.Client.Content(ctx, messageID)
	if err != nil {
		return "", err
	}
	return utils.StoreItemPhoto(ctx, data)
}
