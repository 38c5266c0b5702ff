package inventory

import (
	"github.com/smallbiznis/orderdesk/internal/inventory/domain"
	"github.com/smallbiznis/orderdesk/internal/inventory/repository"
	"github.com/smallbiznis/orderdesk/internal/inventory/service"
	"go.uber.org/fx"
)

var Module = fx.Module("inventory.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(
		func(s *service.Service) domain.Service { return s },
		func(s *service.Service) domain.Ledger { return s },
	),
)
