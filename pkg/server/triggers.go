package server

import (
	"github.com/kochj23/webmush/pkg/gamedb"
)

// Trigger attribute names. Stored softcode in these attributes runs
// automatically when the matching game event happens; %0 carries the
// event argument (spoken text for ON_SAY), %# the enactor.
const (
	TriggerEnter = "ON_ENTER"
	TriggerLeave = "ON_LEAVE"
	TriggerUse   = "ON_USE"
	TriggerGet   = "ON_GET"
	TriggerDrop  = "ON_DROP"
	TriggerSay   = "ON_SAY"
)

// FireTrigger runs a trigger attribute on one object. The object is the
// executor, the acting player the enactor. Returns whether a trigger
// attribute existed.
func (g *Game) FireTrigger(obj gamedb.DBRef, attr string, enactor gamedb.DBRef) bool {
	return g.RunAttr(obj, attr, enactor, nil)
}

// FireRoomTrigger runs a trigger on a room and every listening object
// in it, passing the event text as %0.
func (g *Game) FireRoomTrigger(room gamedb.DBRef, attr string, enactor gamedb.DBRef, text string) {
	args := []string{text}
	g.RunAttr(room, attr, enactor, args)
	for _, ref := range g.DB.Contents(room) {
		if ref == enactor {
			continue
		}
		if kind, _ := g.DB.Kind(ref); kind == gamedb.KindPlayer || kind == gamedb.KindExit {
			continue
		}
		g.RunAttr(ref, attr, enactor, args)
	}
}

// RunAttr evaluates a stored attribute as softcode with the object as
// executor. NoCommand attributes never fire. Output is discarded;
// side-effect functions deliver through the queued notifications.
func (g *Game) RunAttr(obj gamedb.DBRef, attr string, enactor gamedb.DBRef, args []string) bool {
	meta, ok := g.DB.GetAttrMeta(obj, attr)
	if !ok || meta.Value == "" {
		return false
	}
	if meta.Flags&gamedb.AttrNoCommand != 0 {
		return false
	}
	ctx := g.NewEvalContext(obj, enactor)
	ctx.Args = args
	ctx.Eval(meta.Value)
	if g.Metrics != nil && ctx.Aborted() {
		g.Metrics.SoftcodeAborted()
	}
	g.deliver(ctx)
	return true
}
