package booking

import (
	"github.com/smallbiznis/orderdesk/internal/booking/domain"
	"github.com/smallbiznis/orderdesk/internal/booking/repository"
	"github.com/smallbiznis/orderdesk/internal/booking/service"
	"go.uber.org/fx"
)

var Module = fx.Module("booking.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(func(s domain.Service) domain.Validator { return s }),
)
