package usecase

import (
	"github.com/shandysiswandi/eksternvarsling/internal/pkg/goerror"
	"github.com/shandysiswandi/eksternvarsling/internal/varsling/entity"
)

type overrideTexts struct {
	SMSText    *string `json:"smsVarslingstekst" validate:"omitnil,notblank,max=160,nolink"`
	EmailTitle *string `json:"epostVarslingstittel" validate:"omitnil,notblank,max=40"`
	EmailBody  *string `json:"epostVarslingstekst" validate:"omitnil,notblank,max=4000,nolink"`
}

// validateTexts checks the producer supplied override texts. Absent texts are
// valid and replaced by standard texts at dispatch.
func (s *Usecase) validateTexts(n entity.Notification) error {
	err := s.validator.Validate(overrideTexts{
		SMSText:    n.SMSText,
		EmailTitle: n.EmailTitle,
		EmailBody:  n.EmailBody,
	})
	if err != nil {
		return goerror.NewInvalidInput(err)
	}
	return nil
}
