package tree

import (
	"fmt"
	"strconv"
	"strings"

	gbdterrors "github.com/go-gbdt/gbdt/pkg/errors"
)

// WriteTo appends this tree's "Tree=N" block (§6 model file format) to sb,
// in the same key=value layout the teacher's loader.go parses
// (split_feature/threshold/decision_type/left_child/right_child/leaf_value).
func (t *Tree) WriteTo(sb *strings.Builder, treeIndex int) {
	fmt.Fprintf(sb, "Tree=%d\n", treeIndex)
	fmt.Fprintf(sb, "num_leaves=%d\n", t.NumLeaves)
	fmt.Fprintf(sb, "num_cat=0\n")
	fmt.Fprintf(sb, "split_feature=%s\n", joinInt32(t.SplitFeature))
	fmt.Fprintf(sb, "threshold=%s\n", joinFloat(t.Threshold))
	fmt.Fprintf(sb, "decision_type=%s\n", joinDecisionType(t.DefaultLeft))
	fmt.Fprintf(sb, "left_child=%s\n", joinInt32(t.LeftChild))
	fmt.Fprintf(sb, "right_child=%s\n", joinInt32(t.RightChild))
	fmt.Fprintf(sb, "leaf_value=%s\n", joinFloat(t.LeafValue))
	fmt.Fprintf(sb, "leaf_count=%s\n", joinInt32(t.LeafCount))
	fmt.Fprintf(sb, "internal_value=%s\n", joinFloat(t.InternalValue))
	fmt.Fprintf(sb, "internal_count=%s\n", joinInt32(t.InternalCount))
	fmt.Fprintf(sb, "gain=%s\n", joinFloat(t.Gain))
	fmt.Fprintf(sb, "shrinkage=%s\n", strconv.FormatFloat(t.ShrinkageApplied, 'g', -1, 64))
	sb.WriteString("\n")
}

func joinInt32(v []int32) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.Itoa(int(x))
	}
	return strings.Join(parts, " ")
}

func joinFloat(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.FormatFloat(x, 'g', -1, 64)
	}
	return strings.Join(parts, " ")
}

// joinDecisionType packs default-left into bit 1 of each node's decision
// type, matching the teacher's parser: (decisionTypes[i] & (1<<1)) != 0.
func joinDecisionType(defaultLeft []bool) string {
	parts := make([]string, len(defaultLeft))
	for i, dl := range defaultLeft {
		v := 0
		if dl {
			v |= 1 << 1
		}
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, " ")
}

// ParseBlock parses one "Tree=N" block's key=value lines (already split by
// the caller) back into a Tree.
func ParseBlock(params map[string]string) (*Tree, error) {
	numLeaves, err := strconv.Atoi(params["num_leaves"])
	if err != nil {
		return nil, gbdterrors.NewModelParseError("tree.ParseBlock", "missing or invalid num_leaves", 0)
	}
	t := &Tree{NumLeaves: numLeaves, ShrinkageApplied: 1}
	if numLeaves <= 1 {
		t.LeafValue = parseFloatArray(params["leaf_value"])
		if len(t.LeafValue) == 0 {
			t.LeafValue = []float64{0}
		}
		t.LeafCount = parseInt32Array(params["leaf_count"])
		if sh, ok := params["shrinkage"]; ok {
			if v, err := strconv.ParseFloat(sh, 64); err == nil {
				t.ShrinkageApplied = v
			}
		}
		return t, nil
	}

	t.SplitFeature = parseInt32Array(params["split_feature"])
	t.Threshold = parseFloatArray(params["threshold"])
	t.LeftChild = parseInt32Array(params["left_child"])
	t.RightChild = parseInt32Array(params["right_child"])
	t.LeafValue = parseFloatArray(params["leaf_value"])
	t.LeafCount = parseInt32Array(params["leaf_count"])
	t.InternalValue = parseFloatArray(params["internal_value"])
	t.InternalCount = parseInt32Array(params["internal_count"])
	t.Gain = parseFloatArray(params["gain"])

	decisionTypes := parseInt32Array(params["decision_type"])
	t.DefaultLeft = make([]bool, len(t.SplitFeature))
	for i := range t.DefaultLeft {
		if i < len(decisionTypes) {
			t.DefaultLeft[i] = decisionTypes[i]&(1<<1) != 0
		}
	}
	t.ThresholdBin = make([]uint32, len(t.SplitFeature))

	if len(t.SplitFeature) != numLeaves-1 {
		return nil, gbdterrors.NewModelParseError("tree.ParseBlock",
			"split_feature length does not match num_leaves-1", 0)
	}
	if len(t.LeafValue) != numLeaves {
		return nil, gbdterrors.NewModelParseError("tree.ParseBlock",
			"leaf_value length does not match num_leaves", 0)
	}

	if sh, ok := params["shrinkage"]; ok {
		if v, err := strconv.ParseFloat(sh, 64); err == nil {
			t.ShrinkageApplied = v
		}
	}
	return t, nil
}

func parseFloatArray(s string) []float64 {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	fields := strings.Fields(s)
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, _ := strconv.ParseFloat(f, 64)
		out[i] = v
	}
	return out
}

func parseInt32Array(s string) []int32 {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	fields := strings.Fields(s)
	out := make([]int32, len(fields))
	for i, f := range fields {
		v, _ := strconv.Atoi(f)
		out[i] = int32(v)
	}
	return out
}
