package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/CyberArcenal/Kabisilya-Management-sub006/internal/dto"
	"github.com/CyberArcenal/Kabisilya-Management-sub006/internal/model"
	"github.com/CyberArcenal/Kabisilya-Management-sub006/internal/repository"
	pkgerrors "github.com/CyberArcenal/Kabisilya-Management-sub006/pkg/errors"
)

// ErrNoActiveSession 未配置当前经营周期，所有写操作都被拒绝
var ErrNoActiveSession = pkgerrors.New(pkgerrors.KindPrecondition, "no active session is configured")

// SessionService 当前经营周期查询
type SessionService interface {
	// CurrentID 当前经营周期 ID；未配置时返回 ErrNoActiveSession
	CurrentID(ctx context.Context) (string, error)
	Current(ctx context.Context) (*dto.SessionResponse, error)
}

type sessionService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewSessionService 创建 SessionService 实例
func NewSessionService(repo *repository.Repository, logger *zap.Logger) SessionService {
	return &sessionService{repo: repo, logger: logger}
}

func (s *sessionService) load(ctx context.Context) (*model.Session, error) {
	session, err := s.repo.Session.GetCurrent(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoActiveSession
		}
		s.logger.Error("查询当前经营周期失败", zap.Error(err))
		return nil, pkgerrors.Persistence(err, "load current session")
	}
	return session, nil
}

func (s *sessionService) CurrentID(ctx context.Context) (string, error) {
	session, err := s.load(ctx)
	if err != nil {
		return "", err
	}
	return session.SessionID, nil
}

func (s *sessionService) Current(ctx context.Context) (*dto.SessionResponse, error) {
	session, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return &dto.SessionResponse{
		ID:        session.SessionID,
		Name:      session.Name,
		StartDate: session.StartDate.Format(model.DateLayout),
		EndDate:   session.EndDate.Format(model.DateLayout),
	}, nil
}

// requireSession 写操作入口统一检查经营周期
func requireSession(sessionID string) error {
	if sessionID == "" {
		return ErrNoActiveSession
	}
	return nil
}
