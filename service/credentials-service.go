package service

import (
	"ctfbot/app_error"
	"ctfbot/repository"
	"errors"

	"gorm.io/gorm"
)

type CredentialsService struct {
	ctfRepository         CTFStore
	credentialsRepository CredentialsStore
	cache                 *ServerConfigCache
}

func NewCredentialsService(db *gorm.DB, cache *ServerConfigCache) *CredentialsService {
	return &CredentialsService{
		ctfRepository:         repository.NewCTFRepository(db),
		credentialsRepository: repository.NewCredentialsRepository(db),
		cache:                 cache,
	}
}

func (s *CredentialsService) CTFForChannel(guildId string, channelId string) (*repository.CTF, error) {
	ctf, err := s.ctfRepository.GetCTFByChannelId(channelId, guildId)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, app_error.NotFound("This command must be used inside a CTF channel. ❌")
		}
		return nil, app_error.ExternalService("failed to find ctf", err)
	}
	return ctf, nil
}

// GetCredentials returns nil without error when none are stored.
func (s *CredentialsService) GetCredentials(ctfId int) (*repository.Credentials, error) {
	credentials, err := s.credentialsRepository.GetCredentials(ctfId)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, app_error.ExternalService("failed to load credentials", err)
	}
	return credentials, nil
}

// SaveCredentials replaces the credentials of a ctf. The ctf must belong to the guild.
func (s *CredentialsService) SaveCredentials(guildId string, credentials *repository.Credentials) error {
	ctf, err := s.ctfRepository.GetCTFById(credentials.CTFID)
	if err != nil || ctf.ServerID != guildId {
		return app_error.NotFound("The CTF does not exist anymore. ❌")
	}
	if credentials.Username == "" || credentials.Password == "" {
		return app_error.Validation("Username and password are required. ❌")
	}
	if err := s.credentialsRepository.SaveCredentials(credentials); err != nil {
		return app_error.ExternalService("failed to save credentials", err)
	}
	return nil
}

func (s *CredentialsService) DeleteCredentials(caller Caller, guildId string, channelId string) error {
	server, err := s.cache.Get(guildId)
	if err != nil {
		return err
	}
	if !caller.CanManage(server) {
		return errMissingRole
	}
	ctf, err := s.CTFForChannel(guildId, channelId)
	if err != nil {
		return err
	}
	if err := s.credentialsRepository.DeleteCredentials(ctf.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return app_error.NotFound("No credentials are stored for this CTF. ❌")
		}
		return app_error.ExternalService("failed to delete credentials", err)
	}
	return nil
}
