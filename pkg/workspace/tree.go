package workspace

import (
	"github.com/surrealdb/surrealdesk/pkg/models"
)

// repairTree makes parent links and child lists agree. Links to missing
// documents and cycles are cut, and every child list is rebuilt from the
// parent links: surviving entries keep their order and children missing
// from the list are appended oldest first.
func repairTree(docs map[models.DocumentID]*models.Document) {
	ordered := make([]*models.Document, 0, len(docs))
	for _, d := range docs {
		ordered = append(ordered, d)
	}
	sortDocuments(ordered)

	for _, d := range ordered {
		if d.ParentID == nil {
			continue
		}
		if _, ok := docs[*d.ParentID]; !ok || *d.ParentID == d.ID {
			d.ParentID = nil
		}
	}

	for _, d := range ordered {
		seen := map[models.DocumentID]bool{d.ID: true}
		for cur := d; cur.ParentID != nil; {
			if seen[*cur.ParentID] {
				cur.ParentID = nil
				break
			}
			seen[*cur.ParentID] = true
			cur = docs[*cur.ParentID]
		}
	}

	children := map[models.DocumentID][]*models.Document{}
	for _, d := range ordered {
		if d.ParentID != nil {
			children[*d.ParentID] = append(children[*d.ParentID], d)
		}
	}
	for _, d := range ordered {
		want := map[models.DocumentID]bool{}
		for _, c := range children[d.ID] {
			want[c.ID] = true
		}
		list := make([]models.DocumentID, 0, len(want))
		for _, id := range d.ChildIDs {
			if want[id] {
				list = append(list, id)
				delete(want, id)
			}
		}
		for _, c := range children[d.ID] {
			if want[c.ID] {
				list = append(list, c.ID)
			}
		}
		d.ChildIDs = list
	}
}

// subtree returns id and all its descendants, parents before children.
func subtree(docs map[models.DocumentID]*models.Document, id models.DocumentID) []models.DocumentID {
	var out []models.DocumentID
	seen := map[models.DocumentID]bool{}
	var walk func(models.DocumentID)
	walk = func(cur models.DocumentID) {
		if seen[cur] {
			return
		}
		seen[cur] = true
		d, ok := docs[cur]
		if !ok {
			return
		}
		out = append(out, cur)
		for _, c := range d.ChildIDs {
			walk(c)
		}
	}
	walk(id)
	return out
}

// isAncestor reports whether ancestor lies on id's parent chain.
func isAncestor(docs map[models.DocumentID]*models.Document, ancestor, id models.DocumentID) bool {
	seen := map[models.DocumentID]bool{}
	for cur, ok := docs[id]; ok && cur.ParentID != nil; cur, ok = docs[*cur.ParentID] {
		if *cur.ParentID == ancestor {
			return true
		}
		if seen[cur.ID] {
			return false
		}
		seen[cur.ID] = true
	}
	return false
}

// treeConsistent reports whether every parent link is mirrored by exactly
// one child list entry and the other way round.
func treeConsistent(docs map[models.DocumentID]*models.Document) bool {
	for _, d := range docs {
		if d.ParentID != nil {
			p, ok := docs[*d.ParentID]
			if !ok || !p.HasChild(d.ID) {
				return false
			}
		}
		seen := map[models.DocumentID]bool{}
		for _, cid := range d.ChildIDs {
			c, ok := docs[cid]
			if !ok || seen[cid] || c.ParentID == nil || *c.ParentID != d.ID {
				return false
			}
			seen[cid] = true
		}
	}
	return true
}
