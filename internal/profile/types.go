package profile

// Profile is a reusable, named launch spec: starting a session by
// profile id expands to starting its command with these parameters.
type Profile struct {
	ID       string            `yaml:"id" json:"id"`
	Name     string            `yaml:"name" json:"name"`
	Command  string            `yaml:"command" json:"command"`
	Args     []string          `yaml:"args,omitempty" json:"args,omitempty"`
	Dir      string            `yaml:"dir,omitempty" json:"dir,omitempty"`
	Env      map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	Cols     int               `yaml:"cols,omitempty" json:"cols,omitempty"`
	Rows     int               `yaml:"rows,omitempty" json:"rows,omitempty"`
	ViaShell bool              `yaml:"via_shell,omitempty" json:"via_shell,omitempty"`
	Notes    string            `yaml:"notes,omitempty" json:"notes,omitempty"`
}
