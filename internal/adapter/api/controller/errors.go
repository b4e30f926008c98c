package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hugohenrick/nfse-emissor/internal/adapter/api/dto"
	"github.com/hugohenrick/nfse-emissor/internal/domain/customer"
	"github.com/hugohenrick/nfse-emissor/internal/domain/invoice"
	"github.com/hugohenrick/nfse-emissor/internal/domain/tenant"
	"github.com/hugohenrick/nfse-emissor/pkg/errs"
	"github.com/hugohenrick/nfse-emissor/pkg/logger"
)

var badRequestErrors = []error{
	invoice.ErrNoItems, invoice.ErrEmptyReason,
	customer.ErrEmptyName, customer.ErrEmptyDocument, customer.ErrInvalidDocument, customer.ErrInvalidEmail,
	tenant.ErrEmptyName, tenant.ErrEmptyDocument, tenant.ErrInvalidDocument, tenant.ErrInvalidMunicipal,
	tenant.ErrInvalidProvider, tenant.ErrInvalidSpecialCode,
}

var conflictErrors = []error{invoice.ErrNotEditable, invoice.ErrNotCancellable}

// statusOf traduz os erros do domínio e do pipeline em status HTTP
func statusOf(err error) int {
	var (
		validation  *errs.ValidationError
		certificate *errs.CertificateError
		format      *errs.FormatError
		transition  *errs.TransitionError
		conflict    *errs.ConflictError
		protocol    *errs.ProtocolError
	)

	switch {
	case errors.As(err, &validation), errors.As(err, &format):
		return http.StatusBadRequest
	case errors.As(err, &certificate):
		return http.StatusUnprocessableEntity
	case errors.As(err, &transition), errors.As(err, &conflict):
		return http.StatusConflict
	case errors.Is(err, errs.ErrOutcomeUnknown):
		return http.StatusGatewayTimeout
	case errors.As(err, &protocol):
		return http.StatusBadGateway
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	}

	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	for _, target := range conflictErrors {
		if errors.Is(err, target) {
			return http.StatusConflict
		}
	}
	return http.StatusInternalServerError
}

// respondError escreve a resposta de erro. Falhas internas são registradas no log.
func respondError(ctx *gin.Context, log logger.Logger, message string, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		log.Error(message, "error", err, "path", ctx.FullPath())
	}

	resp := dto.NewErrorResponse(status, message, err.Error())
	var validation *errs.ValidationError
	if errors.As(err, &validation) {
		resp.Field = validation.Field
	}
	var certificate *errs.CertificateError
	if errors.As(err, &certificate) {
		resp.Details = certificate.Remediation()
	}
	ctx.JSON(status, resp)
}

func bindError(ctx *gin.Context, err error) {
	ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, "dados inválidos", err.Error()))
}
