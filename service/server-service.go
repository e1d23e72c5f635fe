package service

import (
	"ctfbot/app_error"
	"ctfbot/repository"
	"errors"
	"log"

	"gorm.io/gorm"
)

type ServerService struct {
	serverRepository ServerStore
	cache            *ServerConfigCache
}

func NewServerService(db *gorm.DB, cache *ServerConfigCache) *ServerService {
	return &ServerService{
		serverRepository: repository.NewServerRepository(db),
		cache:            cache,
	}
}

// Init replaces the whole configuration of a server.
func (s *ServerService) Init(caller Caller, server *repository.Server) error {
	if !caller.Administrator {
		return app_error.PermissionDenied("You need administrator rights to run this command. ❌")
	}
	if server.ActiveCategoryID == "" || server.ArchiveCategoryID == "" || server.RoleManagerID == "" {
		return app_error.Validation("Active category, archive category and manager role are required. ❌")
	}
	if err := s.serverRepository.ReplaceServer(server); err != nil {
		s.cache.Invalidate(server.ID)
		return app_error.ExternalService("failed to store server configuration", err)
	}
	s.cache.Put(server)
	log.Printf("server %s initialized (active %s, archive %s, manager %s)", server.ID, server.ActiveCategoryID, server.ArchiveCategoryID, server.RoleManagerID)
	return nil
}

func (s *ServerService) Teardown(caller Caller, serverId string) error {
	if !caller.Administrator {
		return app_error.PermissionDenied("You need administrator rights to run this command. ❌")
	}
	s.cache.Invalidate(serverId)
	if err := s.serverRepository.DeleteServer(serverId); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return app_error.NotFound("This server is not configured. ❌")
		}
		return app_error.ExternalService("failed to delete server configuration", err)
	}
	log.Printf("server %s configuration removed", serverId)
	return nil
}

func (s *ServerService) GetServer(serverId string) (*repository.Server, error) {
	return s.cache.Get(serverId)
}
