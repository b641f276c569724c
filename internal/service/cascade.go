package service

import "github.com/noah-isme/sma-supervision-api/internal/models"

type idSet map[string]struct{}

func newIDSet(ids []string) idSet {
	set := make(idSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func (s idSet) has(id string) bool {
	_, ok := s[id]
	return ok
}

// cascadeEdge declares that children of Child referencing a removed Parent are removed too.
type cascadeEdge struct {
	Parent string
	Child  string
	detach func(c *models.Collections, parents idSet) []string
}

// ownershipGraph lists every cascading relation. Relations not declared here never cascade;
// deleting a custom criterion, for instance, leaves saved reports untouched.
var ownershipGraph = []cascadeEdge{
	{
		Parent: models.KeyTeachers,
		Child:  models.KeyReports,
		detach: func(c *models.Collections, parents idSet) []string {
			var removed []string
			c.Reports, removed = removeWhere(c.Reports, func(r models.Report) (string, bool) {
				return r.ID, parents.has(r.TeacherID)
			})
			return removed
		},
	},
	{
		Parent: models.KeyTeachers,
		Child:  models.KeySyllabusCoverageReports,
		detach: func(c *models.Collections, parents idSet) []string {
			var removed []string
			c.SyllabusCoverageReports, removed = removeWhere(c.SyllabusCoverageReports, func(r models.SyllabusCoverageReport) (string, bool) {
				return r.ID, parents.has(r.TeacherID)
			})
			return removed
		},
	},
	{
		Parent: models.KeyReports,
		Child:  models.KeyCustomCriteria,
		detach: func(c *models.Collections, parents idSet) []string {
			var removed []string
			c.CustomCriteria, removed = removeWhere(c.CustomCriteria, func(cc models.CustomCriterion) (string, bool) {
				return cc.ID, !cc.IsGeneral && cc.ReportID != "" && parents.has(cc.ReportID)
			})
			return removed
		},
	},
	{
		Parent: models.KeyReports,
		Child:  models.KeyBookmarkedReportIDs,
		detach: func(c *models.Collections, parents idSet) []string {
			var removed []string
			c.BookmarkedReportIDs, removed = removeWhere(c.BookmarkedReportIDs, func(id string) (string, bool) {
				return id, parents.has(id)
			})
			return removed
		},
	},
}

// roots removes entities of a collection by id.
var roots = map[string]func(c *models.Collections, ids idSet) []string{
	models.KeyTeachers: func(c *models.Collections, ids idSet) []string {
		var removed []string
		c.Teachers, removed = removeByID(c.Teachers, func(t models.Teacher) string { return t.ID }, ids)
		return removed
	},
	models.KeyReports: func(c *models.Collections, ids idSet) []string {
		var removed []string
		c.Reports, removed = removeByID(c.Reports, func(r models.Report) string { return r.ID }, ids)
		return removed
	},
	models.KeyCustomCriteria: func(c *models.Collections, ids idSet) []string {
		var removed []string
		c.CustomCriteria, removed = removeByID(c.CustomCriteria, func(cc models.CustomCriterion) string { return cc.ID }, ids)
		return removed
	},
	models.KeySpecialReportTemplates: func(c *models.Collections, ids idSet) []string {
		var removed []string
		c.SpecialReportTemplates, removed = removeByID(c.SpecialReportTemplates, func(t models.SpecialReportTemplate) string { return t.ID }, ids)
		return removed
	},
	models.KeySyllabusPlans: func(c *models.Collections, ids idSet) []string {
		var removed []string
		c.SyllabusPlans, removed = removeByID(c.SyllabusPlans, func(p models.SyllabusPlan) string { return p.ID }, ids)
		return removed
	},
	models.KeySyllabusCoverageReports: func(c *models.Collections, ids idSet) []string {
		var removed []string
		c.SyllabusCoverageReports, removed = removeByID(c.SyllabusCoverageReports, recordID[models.SyllabusCoverageReport], ids)
		return removed
	},
	models.KeyTasks: func(c *models.Collections, ids idSet) []string {
		var removed []string
		c.Tasks, removed = removeByID(c.Tasks, recordID[models.Task], ids)
		return removed
	},
	models.KeyMeetings: func(c *models.Collections, ids idSet) []string {
		var removed []string
		c.Meetings, removed = removeByID(c.Meetings, recordID[models.Meeting], ids)
		return removed
	},
	models.KeyPeerVisits: func(c *models.Collections, ids idSet) []string {
		var removed []string
		c.PeerVisits, removed = removeByID(c.PeerVisits, recordID[models.PeerVisit], ids)
		return removed
	},
	models.KeyDeliverySheets: func(c *models.Collections, ids idSet) []string {
		var removed []string
		c.DeliverySheets, removed = removeByID(c.DeliverySheets, recordID[models.DeliverySheet], ids)
		return removed
	},
	models.KeyBulkMessages: func(c *models.Collections, ids idSet) []string {
		var removed []string
		c.BulkMessages, removed = removeByID(c.BulkMessages, recordID[models.BulkMessage], ids)
		return removed
	},
	models.KeySupervisoryPlans: func(c *models.Collections, ids idSet) []string {
		var removed []string
		c.SupervisoryPlans, removed = removeByID(c.SupervisoryPlans, recordID[models.SupervisoryPlanWrapper], ids)
		return removed
	},
	models.KeyUsers: func(c *models.Collections, ids idSet) []string {
		var removed []string
		c.Users, removed = removeByID(c.Users, func(u models.User) string { return u.ID }, ids)
		return removed
	},
}

func recordID[T interface{ Meta() models.Record }](item T) string {
	return item.Meta().ID
}

// DeleteCascade removes the given ids from collection key and every dependent
// reachable through the ownership graph. It returns removed ids per collection.
func DeleteCascade(c *models.Collections, key string, ids ...string) map[string][]string {
	removed := make(map[string][]string)
	root, ok := roots[key]
	if !ok || len(ids) == 0 {
		return removed
	}
	type pending struct {
		key string
		ids []string
	}
	gone := root(c, newIDSet(ids))
	if len(gone) == 0 {
		return removed
	}
	removed[key] = gone
	queue := []pending{{key: key, ids: gone}}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		parents := newIDSet(next.ids)
		for _, edge := range ownershipGraph {
			if edge.Parent != next.key {
				continue
			}
			children := edge.detach(c, parents)
			if len(children) == 0 {
				continue
			}
			removed[edge.Child] = append(removed[edge.Child], children...)
			queue = append(queue, pending{key: edge.Child, ids: children})
		}
	}
	return removed
}

func removeByID[T any](items []T, id func(T) string, ids idSet) ([]T, []string) {
	return removeWhere(items, func(item T) (string, bool) {
		itemID := id(item)
		return itemID, ids.has(itemID)
	})
}

// removeWhere returns a new slice without matched items, plus the matched ids.
func removeWhere[T any](items []T, match func(T) (string, bool)) ([]T, []string) {
	kept := make([]T, 0, len(items))
	var removed []string
	for _, item := range items {
		if id, hit := match(item); hit {
			removed = append(removed, id)
			continue
		}
		kept = append(kept, item)
	}
	return kept, removed
}
