package store

import (
	"time"

	"github.com/jimmi21/LogistikoCRM-sub003/internal/model"
)

// ActiveRulesByTrigger returns the active rules for one trigger with
// their type filters and templates preloaded.
func (s *Store) ActiveRulesByTrigger(trigger model.RuleTrigger) ([]model.AutomationRule, error) {
	var rules []model.AutomationRule
	err := s.db.Preload("ObligationTypes").Preload("Template").
		Where("`trigger` = ? AND is_active = ?", trigger, true).
		Find(&rules).Error
	if err != nil {
		return nil, wrap("failed to list automation rules", err)
	}
	return rules, nil
}

func (s *Store) ListRules() ([]model.AutomationRule, error) {
	var rules []model.AutomationRule
	err := s.db.Preload("ObligationTypes").Preload("Template").
		Order("created_at DESC").Find(&rules).Error
	if err != nil {
		return nil, wrap("failed to list automation rules", err)
	}
	return rules, nil
}

func (s *Store) GetRule(id uint) (*model.AutomationRule, error) {
	var rule model.AutomationRule
	err := s.db.Preload("ObligationTypes").Preload("Template").First(&rule, id).Error
	if err != nil {
		return nil, wrap("failed to get automation rule", err)
	}
	return &rule, nil
}

func (s *Store) CreateRule(rule *model.AutomationRule) error {
	return wrap("failed to create automation rule", s.db.Create(rule).Error)
}

// SaveRule persists the rule and reconciles its type filter. Save alone
// only upserts join rows and never deletes the ones no longer listed,
// so the association is replaced explicitly.
func (s *Store) SaveRule(rule *model.AutomationRule) error {
	return s.Transaction(func(tx *Store) error {
		types := rule.ObligationTypes
		if err := tx.db.Omit("ObligationTypes").Save(rule).Error; err != nil {
			return wrap("failed to save automation rule", err)
		}
		assoc := tx.db.Model(rule).Association("ObligationTypes")
		if len(types) == 0 {
			return wrap("failed to clear rule type filter", assoc.Clear())
		}
		return wrap("failed to replace rule type filter", assoc.Replace(types))
	})
}

func (s *Store) DeleteRule(id uint) error {
	return wrap("failed to delete automation rule", s.db.Delete(&model.AutomationRule{}, id).Error)
}

func (s *Store) GetTemplate(id uint) (*model.EmailTemplate, error) {
	var tpl model.EmailTemplate
	if err := s.db.First(&tpl, id).Error; err != nil {
		return nil, wrap("failed to get email template", err)
	}
	return &tpl, nil
}

// ActiveTemplateForType finds the active template bound to an
// obligation type, for rules that carry no template of their own.
func (s *Store) ActiveTemplateForType(typeID uint) (*model.EmailTemplate, error) {
	var tpl model.EmailTemplate
	err := s.db.Where("obligation_type_id = ? AND is_active = ?", typeID, true).
		First(&tpl).Error
	if err != nil {
		return nil, wrap("failed to find template for type", err)
	}
	return &tpl, nil
}

func (s *Store) ListTemplates() ([]model.EmailTemplate, error) {
	var tpls []model.EmailTemplate
	if err := s.db.Order("name ASC").Find(&tpls).Error; err != nil {
		return nil, wrap("failed to list email templates", err)
	}
	return tpls, nil
}

func (s *Store) CreateTemplate(tpl *model.EmailTemplate) error {
	return wrap("failed to create email template", s.db.Create(tpl).Error)
}

func (s *Store) SaveTemplate(tpl *model.EmailTemplate) error {
	return wrap("failed to save email template", s.db.Save(tpl).Error)
}

func (s *Store) DeleteTemplate(id uint) error {
	return wrap("failed to delete email template", s.db.Delete(&model.EmailTemplate{}, id).Error)
}

// EnqueueJob inserts one outbox row for the dispatcher.
func (s *Store) EnqueueJob(job *model.EmailJob) error {
	return wrap("failed to enqueue email job", s.db.Create(job).Error)
}

// EnqueueJobOnce inserts the sent-once marker and the job in a single
// transaction. A marker already present for (obligation, rule) means a
// previous sweep got here first; the caller sees apperr.ErrDuplicate
// and no job row is left behind.
func (s *Store) EnqueueJobOnce(job *model.EmailJob, obligationID, ruleID uint) error {
	return s.Transaction(func(tx *Store) error {
		fire := model.RuleFire{
			ObligationID: obligationID,
			RuleID:       ruleID,
			FiredAt:      time.Now(),
		}
		if err := tx.db.Create(&fire).Error; err != nil {
			return wrap("failed to mark rule fired", err)
		}
		return wrap("failed to enqueue email job", tx.db.Create(job).Error)
	})
}

// ClaimDueJobs atomically moves due pending jobs to queued and returns
// them, so overlapping drain cycles never pick up the same job.
func (s *Store) ClaimDueJobs(now time.Time, limit int) ([]model.EmailJob, error) {
	var jobs []model.EmailJob
	err := s.Transaction(func(tx *Store) error {
		err := tx.db.Where("status = ? AND send_at <= ?", model.JobPending, now).
			Order("send_at ASC").Limit(limit).Find(&jobs).Error
		if err != nil {
			return wrap("failed to find due jobs", err)
		}
		if len(jobs) == 0 {
			return nil
		}
		ids := make([]uint, len(jobs))
		for i, j := range jobs {
			ids[i] = j.ID
		}
		return wrap("failed to claim due jobs",
			tx.db.Model(&model.EmailJob{}).Where("id IN ?", ids).
				Update("status", model.JobQueued).Error)
	})
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

func (s *Store) MarkJobSent(id uint) error {
	err := s.db.Model(&model.EmailJob{}).Where("id = ?", id).
		Update("status", model.JobSent).Error
	return wrap("failed to mark job sent", err)
}

func (s *Store) MarkJobFailed(id uint, errMsg string) error {
	err := s.db.Model(&model.EmailJob{}).Where("id = ?", id).
		Updates(map[string]interface{}{"status": model.JobFailed, "error_msg": errMsg}).Error
	return wrap("failed to mark job failed", err)
}

func (s *Store) CreateEmailLog(log *model.EmailLog) error {
	return wrap("failed to create email log", s.db.Create(log).Error)
}

func (s *Store) ListEmailLogs(offset, limit int) ([]model.EmailLog, int64, error) {
	var total int64
	if err := s.db.Model(&model.EmailLog{}).Count(&total).Error; err != nil {
		return nil, 0, wrap("failed to count email logs", err)
	}
	var logs []model.EmailLog
	err := s.db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&logs).Error
	if err != nil {
		return nil, 0, wrap("failed to list email logs", err)
	}
	return logs, total, nil
}
