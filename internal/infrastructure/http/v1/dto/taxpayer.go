package dto

import (
	"taxledger/internal/domain/taxpayer"
)

// CreateTaxpayerRequest is the admin registration form.
type CreateTaxpayerRequest struct {
	Name         string `json:"name" binding:"required"`
	Username     string `json:"username" binding:"required"`
	Password     string `json:"password" binding:"required,min=6"`
	BusinessName string `json:"businessName" binding:"required"`
	Ward         string `json:"ward" binding:"required"`
	Phone        string `json:"phone"`
	Address      string `json:"address"`
}

// ToInput converts to the domain input.
func (r *CreateTaxpayerRequest) ToInput() taxpayer.CreateInput {
	return taxpayer.CreateInput{
		Name:         r.Name,
		Username:     r.Username,
		Password:     r.Password,
		BusinessName: r.BusinessName,
		Ward:         r.Ward,
		Phone:        r.Phone,
		Address:      r.Address,
	}
}

// TaxpayerListQuery filters the taxpayer list.
type TaxpayerListQuery struct {
	ListQuery
	Ward string `form:"ward"`
}

// ToFilter converts to the domain filter.
func (q TaxpayerListQuery) ToFilter() taxpayer.Filter {
	return taxpayer.Filter{ListFilter: q.ToListFilter(), Ward: q.Ward}
}
