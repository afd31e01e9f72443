package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/meridian-backend/internal/logger"
	"github.com/yungbote/meridian-backend/internal/repos"
)

type Repos struct {
	Signal                  repos.SignalRepo
	UserState               repos.UserStateRepo
	SentMessage             repos.SentMessageRepo
	ChatMessage             repos.ChatMessageRepo
	Introduction            repos.IntroductionRepo
	Reputation              repos.ReputationRepo
	Undercurrent            repos.UndercurrentRepo
	UndercurrentInteraction repos.UndercurrentInteractionRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Signal:                  repos.NewSignalRepo(db, log),
		UserState:               repos.NewUserStateRepo(db, log),
		SentMessage:             repos.NewSentMessageRepo(db, log),
		ChatMessage:             repos.NewChatMessageRepo(db, log),
		Introduction:            repos.NewIntroductionRepo(db, log),
		Reputation:              repos.NewReputationRepo(db, log),
		Undercurrent:            repos.NewUndercurrentRepo(db, log),
		UndercurrentInteraction: repos.NewUndercurrentInteractionRepo(db, log),
	}
}
