package enums

// AuditEventType names a lead routing transition in the audit trail.
type AuditEventType string

const (
	AuditAssignmentCreated    AuditEventType = "assignment.created"
	AuditAssignmentExpired    AuditEventType = "assignment.expired"
	AuditAssignmentReassigned AuditEventType = "assignment.reassigned"
	AuditLeadUnassigned       AuditEventType = "lead.unassigned"
)

var validAuditEventTypes = []AuditEventType{
	AuditAssignmentCreated,
	AuditAssignmentExpired,
	AuditAssignmentReassigned,
	AuditLeadUnassigned,
}

// IsValid reports whether the value is a known audit event.
func (e AuditEventType) IsValid() bool {
	for _, candidate := range validAuditEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}
