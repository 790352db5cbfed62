package main

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"

	"github.com/BaSui01/crucible/workflow"
)

// 默认流水线的演示团队名称
var demoMembers = map[string][]string{
	workflow.StageCompetitivePair:      {"engineering_a", "engineering_b"},
	workflow.StageAdversaryPair:        {"red_team", "blue_team"},
	workflow.StageInnovatorsDisruptors: {"innovators", "disruptors"},
	workflow.StageSecurityQuality:      {"security_quality"},
}

// demoTeams 为阶段表中的每个 solo/pair 阶段绑定脚本化团队。
// 输出只依赖目标与团队名，同一输入总是得到同一状态。
func demoTeams(pipeline []workflow.StageDescriptor) map[string]workflow.Binding {
	teams := make(map[string]workflow.Binding, len(pipeline))
	for _, stage := range pipeline {
		switch stage.Kind {
		case workflow.StageKindSolo:
			teams[stage.ID] = workflow.Solo(demoTeam(stage, memberName(stage.ID, 0, 1)))
		case workflow.StageKindPair:
			teams[stage.ID] = workflow.Pair(
				demoTeam(stage, memberName(stage.ID, 0, 2)),
				demoTeam(stage, memberName(stage.ID, 1, 2)),
			)
		}
	}
	return teams
}

func memberName(stageID string, i, n int) string {
	if names, ok := demoMembers[stageID]; ok && len(names) == n {
		return names[i]
	}
	if n == 1 {
		return stageID
	}
	return fmt.Sprintf("%s_%c", stageID, 'a'+i)
}

func demoTeam(stage workflow.StageDescriptor, name string) workflow.Team {
	return workflow.NewFuncTeam(name, func(ctx context.Context, objective string, snapshot map[string]any) (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		switch {
		case stage.Kind == workflow.StageKindPair && stage.Mode == workflow.PairModeCompetitive:
			return map[string]any{
				"bid":     demoBid(name, objective),
				"content": fmt.Sprintf("%s proposal for %q", name, objective),
			}, nil
		case stage.Kind == workflow.StageKindPair && stage.Mode == workflow.PairModeAdversarial:
			return fmt.Sprintf("%s review of %q: no blocking findings", name, objective), nil
		case stage.Kind == workflow.StageKindPair:
			return map[string]any{
				name + "_notes": fmt.Sprintf("%s perspective on %q", name, objective),
			}, nil
		default:
			return map[string]any{
				"checked_keys": sortedKeys(snapshot),
				"verdict":      "hardened",
			}, nil
		}
	})
}

// demoBid 由团队名与目标散列得到 [0.5, 1) 区间的报价
func demoBid(name, objective string) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name + "\x00" + objective))
	return 0.5 + float64(h.Sum32()%500)/1000
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
