package flows

import (
	"context"

	"bitbucket.org/mmdatafocus/stockbot_backend/config"
	"bitbucket.org/mmdatafocus/stockbot_backend/line"
	"bitbucket.org/mmdatafocus/stockbot_backend/models"
	"github.com/sirupsen/logrus"
)

// unknownActorName is recorded when neither the directory nor the platform
// can name the user. Recording still proceeds; attribution is best-effort.
const unknownActorName = "Unknown user"

// ProfileService resolves platform user ids to display names. The user
// directory is the source of truth; on a miss the platform profile API is
// consulted once and the result registered, so later lookups stay local.
type ProfileService struct {
	Directory *models.UserDirectory
	Client    *line.Client
	Logger    *logrus.Logger
}

func NewProfileService(directory *models.UserDirectory, client *line.Client, logger *logrus.Logger) *ProfileService {
	return &ProfileService{Directory: directory, Client: client, Logger: logger}
}

// DisplayName never fails: directory errors and profile API errors degrade to
// the unknown-actor placeholder after logging.
func (p *ProfileService) DisplayName(ctx context.Context, userID string) string {
	name, found, err := p.Directory.DisplayName(userID)
	if err == nil && found {
		return name
	}
	if err != nil {
		config.LogError(p.Logger, "flows", "DisplayName", "reading user directory", userID, err)
	}

	name, err = p.Client.Profile(ctx, userID)
	if err != nil || name == "" {
		if err != nil {
			config.LogError(p.Logger, "flows", "DisplayName", "fetching platform profile", userID, err)
		}
		return unknownActorName
	}

	if err := p.Directory.Register(userID, name); err != nil {
		// Already logged at the directory layer; the fetched name is still good.
		p.Logger.WithFields(logrus.Fields{"module": "flows", "userId": userID}).
			Warn("could not register first-contact user")
	}
	return name
}
