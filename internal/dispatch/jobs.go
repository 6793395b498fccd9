package dispatch

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"NotiFlow/internal/bulk"
	"NotiFlow/internal/models"
	"NotiFlow/internal/queue"
)

// templateForType maps transactional sub-paths onto template names.
// JobTransactional keeps whatever template the payload names.
func templateForType(typ models.JobType, payload models.JobPayload) string {
	switch typ {
	case models.JobWelcome:
		return "welcome"
	case models.JobPasswordReset:
		return "password-reset"
	case models.JobOtp:
		return "otp"
	case models.JobEventConfirmation:
		return "event-confirmation"
	default:
		if payload.Template != "" {
			return payload.Template
		}
		return "transactional"
	}
}

// ProcessEmailJob is the email lane handler. Transport failures bubble
// up as retryable errors; bad job shapes fail permanently.
func (d *Dispatcher) ProcessEmailJob(ctx context.Context, job *models.Job) error {
	switch job.Type {
	case models.JobTransactional, models.JobWelcome, models.JobPasswordReset,
		models.JobEventConfirmation, models.JobOtp:
		return d.processSingle(ctx, models.ChannelEmail, job)
	case models.JobBulkEmail, models.JobBulkSMS:
		return fmt.Errorf("%w: bulk job %s routed to email lane", queue.ErrPermanent, job.Type)
	default:
		return fmt.Errorf("%w: unknown email job type %q", queue.ErrPermanent, job.Type)
	}
}

// ProcessSMSJob is the sms lane handler.
func (d *Dispatcher) ProcessSMSJob(ctx context.Context, job *models.Job) error {
	switch job.Type {
	case models.JobTransactional, models.JobWelcome, models.JobPasswordReset,
		models.JobEventConfirmation, models.JobOtp:
		return d.processSingle(ctx, models.ChannelSMS, job)
	case models.JobBulkEmail, models.JobBulkSMS:
		return fmt.Errorf("%w: bulk job %s routed to sms lane", queue.ErrPermanent, job.Type)
	default:
		return fmt.Errorf("%w: unknown sms job type %q", queue.ErrPermanent, job.Type)
	}
}

func (d *Dispatcher) processSingle(ctx context.Context, channel models.Channel, job *models.Job) error {
	req := SendRequest{
		Channel:  channel,
		UserID:   job.Payload.UserID,
		To:       job.Payload.To,
		Template: templateForType(job.Type, job.Payload),
		Subject:  job.Payload.Subject,
		Data:     job.Payload.Data,
	}

	if err := d.Validate(req); err != nil {
		return fmt.Errorf("%w: %s", queue.ErrPermanent, err)
	}

	res := d.Send(ctx, req)
	if res.Skipped {
		// Preference denial completes the job: nothing to retry.
		return nil
	}
	if !res.Success {
		return fmt.Errorf("send to %s failed: %s", req.To, res.Error)
	}
	return nil
}

// RunBulk fans a bulk payload out through the processor. Also used
// inline by the API when the caller asks for a synchronous aggregate.
func (d *Dispatcher) RunBulk(ctx context.Context, processor *bulk.Processor, typ models.JobType, payload models.JobPayload) (models.BulkResult, error) {
	var channel models.Channel
	switch typ {
	case models.JobBulkEmail:
		channel = models.ChannelEmail
	case models.JobBulkSMS:
		channel = models.ChannelSMS
	default:
		return models.BulkResult{}, fmt.Errorf("%w: job type %q is not a bulk type", queue.ErrPermanent, typ)
	}

	if len(payload.Recipients) == 0 {
		return models.BulkResult{}, fmt.Errorf("%w: bulk job has no recipients", queue.ErrPermanent)
	}

	templateName := payload.Template
	if templateName == "" {
		templateName = "transactional"
	}

	result := processor.Process(ctx, payload.Recipients, func(ctx context.Context, rcpt models.Recipient) error {
		data := mergeData(payload.Data, rcpt.Data)

		to := rcpt.Email
		if channel == models.ChannelSMS {
			to = rcpt.Phone
		}

		res := d.Send(ctx, SendRequest{
			Channel:  channel,
			UserID:   rcpt.UserID,
			To:       to,
			Template: templateName,
			Subject:  payload.Subject,
			Data:     data,
		})
		if res.Skipped {
			return nil
		}
		if !res.Success {
			return fmt.Errorf("%s", res.Error)
		}
		return nil
	})

	return result, nil
}

// BulkHandler builds the bulk lane handler around a fan-out processor.
// Partial recipient failures are recorded in the aggregate and do not
// fail the job: the queue's backoff is not a re-delivery mechanism for
// recipients that already received the message.
func (d *Dispatcher) BulkHandler(processor *bulk.Processor) queue.ProcessFunc {
	return func(ctx context.Context, job *models.Job) error {
		result, err := d.RunBulk(ctx, processor, job.Type, job.Payload)
		if err != nil {
			return err
		}

		d.log.Info("bulk job processed",
			zap.String("job_id", job.ID),
			zap.String("type", string(job.Type)),
			zap.Int("sent", result.Sent),
			zap.Int("failed", result.Failed),
			zap.Int("total", result.Total),
		)
		return nil
	}
}

// mergeData overlays per-recipient fields on the batch-wide data.
func mergeData(base, overlay map[string]interface{}) map[string]interface{} {
	if len(overlay) == 0 {
		return base
	}
	merged := make(map[string]interface{}, len(base)+len(overlay))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range overlay {
		merged[k] = v
	}
	return merged
}
