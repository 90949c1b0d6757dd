package auction

import (
	"github.com/bidvault/goapi/domain"
)

type FindAllOptions struct {
	SortBy    *string
	SortDir   *domain.SortDir
	Offset    *int32
	Limit     *int32
	Seller    *domain.Address
	Lifecycle *Lifecycle
}

type FindAllOptionsFunc func(*FindAllOptions) error

func GetFindAllOptions(opts ...FindAllOptionsFunc) (FindAllOptions, error) {
	res := FindAllOptions{}
	for _, opt := range opts {
		if err := opt(&res); err != nil {
			return res, err
		}
	}
	return res, nil
}

func WithPagination(offset int32, limit int32) FindAllOptionsFunc {
	return func(options *FindAllOptions) error {
		options.Offset = &offset
		options.Limit = &limit
		return nil
	}
}

func WithSort(sortBy string, sortDir domain.SortDir) FindAllOptionsFunc {
	return func(options *FindAllOptions) error {
		options.SortBy = &sortBy
		options.SortDir = &sortDir
		return nil
	}
}

func WithSeller(seller domain.Address) FindAllOptionsFunc {
	return func(options *FindAllOptions) error {
		options.Seller = seller.ToLowerPtr()
		return nil
	}
}

func WithLifecycle(lifecycle Lifecycle) FindAllOptionsFunc {
	return func(options *FindAllOptions) error {
		options.Lifecycle = &lifecycle
		return nil
	}
}
