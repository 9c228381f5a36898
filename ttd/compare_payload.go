package ttd

import (
	"bytes"
	"math"
	"sort"
	"strconv"
)

func (c *comparer) payload(path string, ra, rb *Record) {
	a, b := ra.ID, rb.ID
	switch pa := ra.Payload.(type) {
	case *PlainInfo:
		return
	case *ScriptFunctionInfo:
		if pb, ok := rb.Payload.(*ScriptFunctionInfo); ok {
			check(c, path, a, b, "name", pa.Name, pb.Name)
			check(c, path, a, b, "body", pa.Body, pb.Body)
			check(c, path, a, b, "scope depth", len(pa.Scope), len(pb.Scope))
			for i := 0; i < len(pa.Scope) && i < len(pb.Scope); i++ {
				c.id(path+".scope["+strconv.Itoa(i)+"]", pa.Scope[i], pb.Scope[i])
			}
			c.id(path+".cachedScope", pa.CachedScope, pb.CachedScope)
			c.id(path+".homeObject", pa.HomeObject, pb.HomeObject)
			c.value(path+".computedName", pa.ComputedName, pb.ComputedName)
			check(c, path, a, b, "super reference", pa.HasSuperReference, pb.HasSuperReference)
			return
		}
	case *ExternalFunctionInfo:
		if pb, ok := rb.Payload.(*ExternalFunctionInfo); ok {
			check(c, path, a, b, "name", pa.Name, pb.Name)
			return
		}
	case *RevokerInfo:
		if pb, ok := rb.Payload.(*RevokerInfo); ok {
			c.id(path+".special(proxy)", pa.Proxy, pb.Proxy)
			return
		}
	case *BoundFunctionInfo:
		if pb, ok := rb.Payload.(*BoundFunctionInfo); ok {
			c.id(path+".special(target)", pa.Target, pb.Target)
			c.value(path+".special(this)", pa.This, pb.This)
			c.values(path+".special(args)", a, b, pa.Args, pb.Args)
			return
		}
	case *ArgumentsInfo:
		if pb, ok := rb.Payload.(*ArgumentsInfo); ok {
			c.id(path+".special(frame)", pa.Frame, pb.Frame)
			check(c, path, a, b, "argument count", pa.NumArgs, pb.NumArgs)
			check(c, path, a, b, "formal count", pa.FormalCount, pb.FormalCount)
			check(c, path, a, b, "deleted", len(pa.Deleted), len(pb.Deleted))
			for i := 0; i < len(pa.Deleted) && i < len(pb.Deleted); i++ {
				check(c, indexPath(path+".deleted", uint32(i)), a, b, "deleted", pa.Deleted[i], pb.Deleted[i])
			}
			return
		}
	case *BoxedValueInfo:
		if pb, ok := rb.Payload.(*BoxedValueInfo); ok {
			c.value(path+".special(value)", pa.Value, pb.Value)
			return
		}
	case *DateInfo:
		if pb, ok := rb.Payload.(*DateInfo); ok {
			check(c, path, a, b, "time", math.Float64bits(pa.Time), math.Float64bits(pb.Time))
			return
		}
	case *RegexInfo:
		if pb, ok := rb.Payload.(*RegexInfo); ok {
			check(c, path, a, b, "pattern", pa.Pattern, pb.Pattern)
			check(c, path, a, b, "flags", pa.Flags, pb.Flags)
			check(c, path, a, b, "lastIndex", pa.LastIndexOrFlag, pb.LastIndexOrFlag)
			c.value(path+".lastIndex", pa.LastIndex, pb.LastIndex)
			return
		}
	case *VarArrayInfo:
		if pb, ok := rb.Payload.(*VarArrayInfo); ok {
			c.varArray(path, a, b, pa, pb)
			return
		}
	case *IntArrayInfo:
		if pb, ok := rb.Payload.(*IntArrayInfo); ok {
			compareArrays(c, path, a, b, &pa.arrayData, &pb.arrayData, func(p string, x, y int32) {
				check(c, p, a, b, "element", x, y)
			})
			return
		}
	case *FloatArrayInfo:
		if pb, ok := rb.Payload.(*FloatArrayInfo); ok {
			compareArrays(c, path, a, b, &pa.arrayData, &pb.arrayData, func(p string, x, y float64) {
				check(c, p, a, b, "element", math.Float64bits(x), math.Float64bits(y))
			})
			return
		}
	case *ES5ArrayInfo:
		if pb, ok := rb.Payload.(*ES5ArrayInfo); ok {
			c.varArray(path, a, b, &pa.VarArrayInfo, &pb.VarArrayInfo)
			check(c, path, a, b, "length writable", pa.LengthWritable, pb.LengthWritable)
			check(c, path, a, b, "accessor count", len(pa.Accessors), len(pb.Accessors))
			for i := 0; i < len(pa.Accessors) && i < len(pb.Accessors); i++ {
				xa, xb := pa.Accessors[i], pb.Accessors[i]
				ip := indexPath(path, xa.Index)
				check(c, ip, a, b, "accessor index", xa.Index, xb.Index)
				check(c, ip, a, b, "attributes", xa.Attrs, xb.Attrs)
				c.id(ip+".get", xa.Getter, xb.Getter)
				c.id(ip+".set", xa.Setter, xb.Setter)
			}
			return
		}
	case *ArrayBufferInfo:
		if pb, ok := rb.Payload.(*ArrayBufferInfo); ok {
			if c.ia.Pending(a) && c.ib.Pending(b) {
				return
			}
			if !bytes.Equal(pa.Bytes, pb.Bytes) {
				c.fail(path, a, b, "buffer contents differ (%d / %d bytes)", len(pa.Bytes), len(pb.Bytes))
			}
			return
		}
	case *TypedArrayInfo:
		if pb, ok := rb.Payload.(*TypedArrayInfo); ok {
			c.id(path+".special(buffer)", pa.Buffer, pb.Buffer)
			check(c, path, a, b, "byte offset", pa.ByteOffset, pb.ByteOffset)
			check(c, path, a, b, "length", pa.Length, pb.Length)
			return
		}
	case *SetInfo:
		if pb, ok := rb.Payload.(*SetInfo); ok {
			if !ra.Kind.IsWeakCollection() {
				c.values(path+".entries", a, b, pa.Values, pb.Values)
			}
			return
		}
	case *MapInfo:
		if pb, ok := rb.Payload.(*MapInfo); ok {
			if ra.Kind.IsWeakCollection() {
				return
			}
			check(c, path, a, b, "entry count", len(pa.Entries), len(pb.Entries))
			for i := 0; i < len(pa.Entries) && i < len(pb.Entries); i++ {
				ep := indexPath(path+".entries", uint32(i))
				c.value(ep+".key", pa.Entries[i].Key, pb.Entries[i].Key)
				c.value(ep+".value", pa.Entries[i].Value, pb.Entries[i].Value)
			}
			return
		}
	case *ProxyInfo:
		if pb, ok := rb.Payload.(*ProxyInfo); ok {
			c.id(path+".special(handler)", pa.Handler, pb.Handler)
			c.id(path+".special(target)", pa.Target, pb.Target)
			return
		}
	case *PromiseInfo:
		if pb, ok := rb.Payload.(*PromiseInfo); ok {
			check(c, path, a, b, "status", pa.Status, pb.Status)
			c.value(path+".special(result)", pa.Result, pb.Result)
			c.reactions(path+".resolveReactions", a, b, pa.ResolveReactions, pb.ResolveReactions)
			c.reactions(path+".rejectReactions", a, b, pa.RejectReactions, pb.RejectReactions)
			return
		}
	case *ResolveFunctionInfo:
		if pb, ok := rb.Payload.(*ResolveFunctionInfo); ok {
			c.id(path+".special(promise)", pa.Promise, pb.Promise)
			check(c, path, a, b, "is reject", pa.IsReject, pb.IsReject)
			c.id(path+".special(alreadyResolved)", pa.Cell, pb.Cell)
			check(c, path, a, b, "already resolved", pa.AlreadyResolved, pb.AlreadyResolved)
			return
		}
	case *ReactionTaskInfo:
		if pb, ok := rb.Payload.(*ReactionTaskInfo); ok {
			c.value(path+".special(argument)", pa.Argument, pb.Argument)
			c.reaction(path+".special(reaction)", a, b, pa.Reaction, pb.Reaction)
			return
		}
	case *AllResolveElementInfo:
		if pb, ok := rb.Payload.(*AllResolveElementInfo); ok {
			c.capability(path+".special(capability)", pa.Capability, pb.Capability)
			check(c, path, a, b, "index", pa.Index, pb.Index)
			c.id(path+".special(remaining)", pa.Cell, pb.Cell)
			check(c, path, a, b, "remaining", pa.Remaining, pb.Remaining)
			c.id(path+".special(values)", pa.Values, pb.Values)
			check(c, path, a, b, "already called", pa.AlreadyCalled, pb.AlreadyCalled)
			return
		}
	}
	c.fail(path, a, b, "payload %T != %T", ra.Payload, rb.Payload)
}

func (c *comparer) values(path string, a, b ObjectID, va, vb []Value) {
	check(c, path, a, b, "count", len(va), len(vb))
	for i := 0; i < len(va) && i < len(vb); i++ {
		c.value(indexPath(path, uint32(i)), va[i], vb[i])
	}
}

func (c *comparer) varArray(path string, a, b ObjectID, pa, pb *VarArrayInfo) {
	compareArrays(c, path, a, b, &pa.arrayData, &pb.arrayData, c.value)
}

// compareArrays matches elements by index, so differently split runs with the
// same contents compare equal.
func compareArrays[T any](c *comparer, path string, a, b ObjectID, xa, xb *arrayData[T], elem func(string, T, T)) {
	check(c, path, a, b, "length", xa.Length, xb.Length)
	inB := make(map[uint32]T)
	for _, run := range xb.Runs {
		for i, it := range run.Items {
			inB[run.Start+uint32(i)] = it
		}
	}
	for _, run := range xa.Runs {
		for i, it := range run.Items {
			idx := run.Start + uint32(i)
			p := indexPath(path, idx)
			other, ok := inB[idx]
			if !ok {
				c.fail(p, a, b, "element missing in B")
				continue
			}
			delete(inB, idx)
			elem(p, it, other)
		}
	}
	extra := make([]uint32, 0, len(inB))
	for idx := range inB {
		extra = append(extra, idx)
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	for _, idx := range extra {
		c.fail(indexPath(path, idx), a, b, "element missing in A")
	}
}

func (c *comparer) capability(path string, ca, cb CapabilityInfo) {
	c.value(path+".promise", ca.Promise, cb.Promise)
	c.id(path+".resolve", ca.Resolve, cb.Resolve)
	c.id(path+".reject", ca.Reject, cb.Reject)
}

func (c *comparer) reaction(path string, a, b ObjectID, ra, rb ReactionInfo) {
	c.capability(path+".capability", ra.Capability, rb.Capability)
	c.id(path+".handler", ra.Handler, rb.Handler)
}

func (c *comparer) reactions(path string, a, b ObjectID, ra, rb []ReactionInfo) {
	check(c, path, a, b, "count", len(ra), len(rb))
	for i := 0; i < len(ra) && i < len(rb); i++ {
		c.reaction(indexPath(path, uint32(i)), a, b, ra[i], rb[i])
	}
}
