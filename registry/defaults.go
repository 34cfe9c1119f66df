package registry

// DefaultEntries is the tool catalogue of a typical coding agent. The
// content body of write_to_file is raw: file text may contain "</content>".
var DefaultEntries = []Entry{
	{Name: "execute_command", Params: []string{"command", "requires_approval"}},
	{Name: "read_file", Params: []string{"path"}},
	{Name: "write_to_file", Params: []string{"path", "content"}, Raw: []string{"content"}},
	{Name: "replace_in_file", Params: []string{"path", "diff"}},
	{Name: "search_files", Params: []string{"path", "regex", "file_pattern"}},
	{Name: "list_files", Params: []string{"path", "recursive"}},
	{Name: "list_code_definition_names", Params: []string{"path"}},
	{Name: "browser_action", Params: []string{"action", "url", "coordinate", "text"}},
	{Name: "use_mcp_tool", Params: []string{"server_name", "tool_name", "arguments"}},
	{Name: "access_mcp_resource", Params: []string{"server_name", "uri"}},
	{Name: "ask_followup_question", Params: []string{"question", "options"}},
	{Name: "attempt_completion", Params: []string{"result", "command"}},
	{Name: "plan_mode_respond", Params: []string{"response"}},
	{Name: "new_task", Params: []string{"context"}},
}

var defaultRegistry = MustNew(DefaultEntries...)

// Default returns the registry built from DefaultEntries
func Default() *Registry {
	return defaultRegistry
}
