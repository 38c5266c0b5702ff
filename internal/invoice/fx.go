package invoice

import (
	"github.com/smallbiznis/orderdesk/internal/invoice/domain"
	"github.com/smallbiznis/orderdesk/internal/invoice/repository"
	"github.com/smallbiznis/orderdesk/internal/invoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(
		func(s *service.Service) domain.Service { return s },
		func(s *service.Service) domain.Reconciler { return s },
	),
)
