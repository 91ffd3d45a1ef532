// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package firewall

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestParser() *Parser {
	return NewParser(NewServicesDirectory(), DefaultMacros)
}

func TestParseVMFileDefaultsPolicyWithNoOptions(t *testing.T) {
	p := newTestParser()
	rf, warnings := p.ParseVMFile("vm.fw", strings.NewReader(""))
	assert.Empty(t, warnings)
	assert.Equal(t, PolicyDrop, rf.Options.PolicyIn)
	assert.Equal(t, PolicyAccept, rf.Options.PolicyOut)
	assert.False(t, rf.Options.EnabledSet)
}

func TestParseVMFileAcceptsBareRule(t *testing.T) {
	p := newTestParser()
	src := "[in]\nACCEPT - - 10.0.0.1 tcp 22 -\n"
	rf, warnings := p.ParseVMFile("vm.fw", strings.NewReader(src))
	require.Empty(t, warnings)
	require.Len(t, rf.In, 1)
	r := rf.In[0]
	assert.Equal(t, ActionAccept, r.Action)
	assert.Equal(t, "", r.Source)
	assert.Equal(t, "10.0.0.1", r.Dest)
	assert.Equal(t, "tcp", r.Proto)
	assert.Equal(t, "22", r.DPort)
	assert.Equal(t, "", r.SPort)
	assert.Equal(t, 1, r.NBDest)
	assert.Equal(t, 1, r.NBDPort)
}

func TestParseVMFileMalformedLineRecoversWithWarning(t *testing.T) {
	p := newTestParser()
	src := "[in]\nACCEPT - 10.0.0.1 tcp 22\nDROP - - 10.0.0.2 tcp 80 -\n"
	rf, warnings := p.ParseVMFile("vm.fw", strings.NewReader(src))
	require.Len(t, warnings, 1)
	assert.Equal(t, "vm.fw", warnings[0].File)
	assert.Equal(t, 2, warnings[0].Line)
	require.Len(t, rf.In, 1)
	assert.Equal(t, ActionDrop, rf.In[0].Action)
}

func TestParseVMFileOptionsSection(t *testing.T) {
	p := newTestParser()
	src := "[options]\nenable: 1\npolicy-in: ACCEPT\npolicy-out: same\n"
	rf, warnings := p.ParseVMFile("vm.fw", strings.NewReader(src))
	require.Empty(t, warnings)
	assert.True(t, rf.Options.EnabledSet)
	assert.True(t, rf.Options.Enabled)
	assert.Equal(t, PolicyAccept, rf.Options.PolicyIn)
	assert.Equal(t, PolicyAccept, rf.Options.PolicyOut)
}

func TestParseVMFileLineOutsideSectionWarns(t *testing.T) {
	p := newTestParser()
	src := "ACCEPT - 10.0.0.1 tcp 22 -\n"
	_, warnings := p.ParseVMFile("vm.fw", strings.NewReader(src))
	require.Len(t, warnings, 1)
}

func TestParseVMFileStripsCommentsAndBlankLines(t *testing.T) {
	p := newTestParser()
	src := "# a top comment\n\n[in]\n  # indented comment\nACCEPT - - 10.0.0.1 tcp 22 - # trailing\n\n"
	rf, warnings := p.ParseVMFile("vm.fw", strings.NewReader(src))
	require.Empty(t, warnings)
	require.Len(t, rf.In, 1)
}

func TestParseHostFileHasNoOptionsSection(t *testing.T) {
	p := newTestParser()
	src := "[options]\nenable: 1\n"
	rf, warnings := p.ParseHostFile("host.fw", strings.NewReader(src))
	require.Len(t, warnings, 1)
	assert.Empty(t, rf.In)
	assert.Empty(t, rf.Out)
}

func TestParseGroupsFileRequiresGroupName(t *testing.T) {
	p := newTestParser()
	src := "[in]\nACCEPT - 10.0.0.1 tcp 22 -\n"
	_, warnings := p.ParseGroupsFile("groups.fw", strings.NewReader(src))
	require.Len(t, warnings, 1)
}

func TestParseGroupsFileRejectsGroupReference(t *testing.T) {
	p := newTestParser()
	src := "[in:web]\nGROUP-other - 10.0.0.1 tcp 22 -\n"
	_, warnings := p.ParseGroupsFile("groups.fw", strings.NewReader(src))
	require.Len(t, warnings, 1)
}

func TestParseGroupsFileCollectsNamedGroups(t *testing.T) {
	p := newTestParser()
	src := "[in:web]\nACCEPT 10.0.0.0/24 - tcp 80 -\n[out:web]\nACCEPT - 10.0.0.0/24 tcp 80 -\n"
	gf, warnings := p.ParseGroupsFile("groups.fw", strings.NewReader(src))
	require.Empty(t, warnings)
	require.Contains(t, gf.Groups, "web")
	assert.Equal(t, []string{"web"}, gf.Order)
	assert.Len(t, gf.Groups["web"].In, 1)
	assert.Len(t, gf.Groups["web"].Out, 1)
}

func TestParseRuleLineGroupReferenceInVMFile(t *testing.T) {
	p := newTestParser()
	src := "[in]\nGROUP-web - - - - - -\n"
	rf, warnings := p.ParseVMFile("vm.fw", strings.NewReader(src))
	require.Empty(t, warnings)
	require.Len(t, rf.In, 1)
	assert.Equal(t, Action("GROUP-web"), rf.In[0].Action)
	assert.Equal(t, "web", rf.In[0].Action.GroupName())
}

func TestParseRuleLineUnknownMacroWarns(t *testing.T) {
	p := newTestParser()
	src := "[in]\nBogus(ACCEPT) - - - - - -\n"
	_, warnings := p.ParseVMFile("vm.fw", strings.NewReader(src))
	require.Len(t, warnings, 1)
}

func TestParseRuleLineMacroExpandsToMultipleRules(t *testing.T) {
	p := newTestParser()
	src := "[in]\nDNS(ACCEPT) - 10.0.0.1 - - - -\n"
	rf, warnings := p.ParseVMFile("vm.fw", strings.NewReader(src))
	require.Empty(t, warnings)
	require.Len(t, rf.In, 2)
	assert.Equal(t, "udp", rf.In[0].Proto)
	assert.Equal(t, "tcp", rf.In[1].Proto)
	for _, r := range rf.In {
		assert.Equal(t, ActionAccept, r.Action)
		assert.Equal(t, "53", r.DPort)
	}
}

func TestParseOptionUnknownKeyErrors(t *testing.T) {
	var opts Options
	err := parseOption("bogus: 1", &opts)
	require.Error(t, err)
}

func TestParseOptionMalformedLineErrors(t *testing.T) {
	var opts Options
	err := parseOption("enable 1", &opts)
	require.Error(t, err)
}

func TestValidateAddressListRejectsBadToken(t *testing.T) {
	_, err := validateAddressList("10.0.0.1,not-an-ip")
	require.Error(t, err)
}

func TestValidateAddressListAcceptsCIDR(t *testing.T) {
	n, err := validateAddressList("10.0.0.0/24,192.168.1.1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestValidatePortListAcceptsRangeAndRejectsInverted(t *testing.T) {
	n, err := validatePortList("80,443,1000:2000", NewServicesDirectory())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = validatePortList("2000:1000", NewServicesDirectory())
	require.Error(t, err)
}

func TestValidatePortListRejectsOutOfRangeNumber(t *testing.T) {
	_, err := validatePortList("70000", NewServicesDirectory())
	require.Error(t, err)
}

func TestValidatePortListRejectsZero(t *testing.T) {
	_, err := validatePortList("0", NewServicesDirectory())
	require.Error(t, err)
}

func TestValidatePortListAcceptsMaxPort(t *testing.T) {
	n, err := validatePortList("65535", NewServicesDirectory())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestValidatePortListRejectsAboveMaxPort(t *testing.T) {
	_, err := validatePortList("65536", NewServicesDirectory())
	require.Error(t, err)
}
