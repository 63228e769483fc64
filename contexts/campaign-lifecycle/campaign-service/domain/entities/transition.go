package entities

// TransitionRule names the legal source states of a lifecycle move and the
// states in which a lost compare-and-set counts as convergence rather than
// an illegal transition. Converged defaults to {To}.
type TransitionRule struct {
	Action    string
	From      []CampaignStatus
	To        CampaignStatus
	Converged []CampaignStatus
}

var (
	LaunchRule = TransitionRule{
		Action: "LAUNCH",
		From:   []CampaignStatus{CampaignStatusDraft},
		To:     CampaignStatusQueued,
	}
	// QueuePaidRule is the webhook path: the processor already proved payment,
	// so anything at or past QUEUED is left alone.
	QueuePaidRule = TransitionRule{
		Action: "QUEUE_PAID",
		From:   []CampaignStatus{CampaignStatusDraft},
		To:     CampaignStatusQueued,
		Converged: []CampaignStatus{
			CampaignStatusQueued,
			CampaignStatusRunning,
			CampaignStatusPaused,
			CampaignStatusEnded,
			CampaignStatusCancelled,
		},
	}
	PauseRule = TransitionRule{
		Action: "PAUSE",
		From:   []CampaignStatus{CampaignStatusRunning},
		To:     CampaignStatusPaused,
	}
	EndRule = TransitionRule{
		Action: "END",
		From:   []CampaignStatus{CampaignStatusQueued, CampaignStatusRunning, CampaignStatusPaused},
		To:     CampaignStatusEnded,
	}
	MarkRunningRule = TransitionRule{
		Action: "MARK_RUNNING",
		From:   []CampaignStatus{CampaignStatusQueued},
		To:     CampaignStatusRunning,
	}
	CancelRule = TransitionRule{
		Action: "CANCEL",
		From: []CampaignStatus{
			CampaignStatusDraft,
			CampaignStatusQueued,
			CampaignStatusRunning,
			CampaignStatusPaused,
		},
		To: CampaignStatusCancelled,
	}
)

// WithdrawUnpaidRule stops a scheduled or live campaign that no longer holds
// a PAID payment. Campaigns that never left DRAFT or already stopped are
// left as they are.
var WithdrawUnpaidRule = TransitionRule{
	Action: "WITHDRAW_UNPAID",
	From: []CampaignStatus{
		CampaignStatusQueued,
		CampaignStatusRunning,
		CampaignStatusPaused,
	},
	To: CampaignStatusCancelled,
	Converged: []CampaignStatus{
		CampaignStatusDraft,
		CampaignStatusEnded,
		CampaignStatusCancelled,
	},
}

func (r TransitionRule) Allows(status CampaignStatus) bool {
	return containsStatus(r.From, status)
}

func (r TransitionRule) ConvergedAt(status CampaignStatus) bool {
	if len(r.Converged) == 0 {
		return status == r.To
	}
	return containsStatus(r.Converged, status)
}

func containsStatus(items []CampaignStatus, status CampaignStatus) bool {
	for _, item := range items {
		if item == status {
			return true
		}
	}
	return false
}
