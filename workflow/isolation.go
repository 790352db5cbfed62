package workflow

// FilterContext 返回去掉 excludeKeys 的浅拷贝，不修改原 map
func FilterContext(ctx map[string]any, excludeKeys map[string]struct{}) map[string]any {
	out := make(map[string]any, len(ctx))
	for k, v := range ctx {
		if _, excluded := excludeKeys[k]; excluded {
			continue
		}
		out[k] = v
	}
	return out
}

// FilterTeamOutputs 剔除 excludedStage 输出中出现的键.
// 输出缺失或不是 map 时排除集为空，结果仍是一个新的 map.
func FilterTeamOutputs(ctx map[string]any, teamOutputs map[string]any, excludedStage string) map[string]any {
	return FilterContext(ctx, outputKeys(teamOutputs[excludedStage]))
}

func outputKeys(output any) map[string]struct{} {
	var keys map[string]struct{}
	switch m := output.(type) {
	case map[string]any:
		keys = make(map[string]struct{}, len(m))
		for k := range m {
			keys[k] = struct{}{}
		}
	case map[string]string:
		keys = make(map[string]struct{}, len(m))
		for k := range m {
			keys[k] = struct{}{}
		}
	}
	return keys
}

// snapshotFor 构建阶段的上下文快照，依次应用所有隔离规则
func snapshotFor(stage StageDescriptor, ctx map[string]any, teamOutputs map[string]any) map[string]any {
	snapshot := FilterContext(ctx, nil)
	for _, excluded := range stage.IsolateFrom {
		snapshot = FilterTeamOutputs(snapshot, teamOutputs, excluded)
	}
	return snapshot
}
